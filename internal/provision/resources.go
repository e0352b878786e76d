package provision

// PlantUMLJar describes the runnable PlantUML jar.
func PlantUMLJar(url, sha256 string) Resource {
	return Resource{
		Name:   "plantuml.jar",
		URL:    url,
		Kind:   KindFile,
		Target: "plantuml.jar",
		SHA256: sha256,
	}
}

// PlantUMLStdlib describes the PlantUML stdlib include library. The branch archive
// unpacks to plantuml-stdlib-<ref>/ and is normalized to plantuml-stdlib/, so the
// include path is always <cache>/plantuml-stdlib/stdlib.
func PlantUMLStdlib(url string) Resource {
	return Resource{
		Name:      "plantuml-stdlib",
		URL:       url,
		Kind:      KindArchive,
		Target:    "plantuml-stdlib",
		DirPrefix: "plantuml-stdlib-",
		Subdir:    "stdlib",
	}
}
