// Package main generates architecture diagrams for diagramcheck.
//
// It uses github.com/blushft/go-diagrams to emit Graphviz dot files under
// docs/diagrams/go-diagrams/. Render them with:
//
//	cd docs/diagrams/go-diagrams && dot -Tpng architecture.dot > architecture.png
package main

import (
	"os"

	"github.com/blushft/go-diagrams/diagram"
	"github.com/blushft/go-diagrams/nodes/generic"
	"github.com/blushft/go-diagrams/nodes/programming"
	log "github.com/sirupsen/logrus"
)

// outputDir is where go-diagrams writes its go-diagrams/ folder.
const outputDir = "docs/diagrams"

func main() {
	if err := os.MkdirAll(outputDir, 0750); err != nil {
		log.WithError(err).Fatal("Failed to create output directory")
	}
	if err := os.Chdir(outputDir); err != nil {
		log.WithError(err).Fatal("Failed to change to output directory")
	}

	generateArchitectureDiagram()
	generateComponentDiagram()

	log.Info("Diagrams written to ", outputDir)
}

// generateArchitectureDiagram shows how a check run flows from discovery to the
// two external renderers.
func generateArchitectureDiagram() {
	d, err := diagram.New(diagram.Filename("architecture"), diagram.Label("diagramcheck Architecture"), diagram.Direction("LR"))
	if err != nil {
		log.WithError(err).Fatal("Failed to create architecture diagram")
	}

	cli := programming.Language.Go(diagram.NodeLabel("diagramcheck CLI"))
	sources := generic.Storage.Storage(diagram.NodeLabel("*.puml / *.mmd"))
	cache := generic.Storage.Storage(diagram.NodeLabel("Dependency cache"))
	java := programming.Language.Java(diagram.NodeLabel("java -jar plantuml.jar -pipe"))
	npx := programming.Language.Nodejs(diagram.NodeLabel("npx mermaid-cli"))

	renderers := diagram.NewGroup("renderers").Label("External renderers").Add(java, npx)

	d.Connect(cli, sources, diagram.Forward())
	d.Connect(cli, cache, diagram.Forward())
	d.Connect(cache, java, diagram.Forward())
	d.Connect(cli, java, diagram.Forward())
	d.Connect(cli, npx, diagram.Forward())
	d.Group(renderers)

	if err := d.Render(); err != nil {
		log.WithError(err).Fatal("Failed to render architecture diagram")
	}
}

// generateComponentDiagram shows the internal packages and their dependencies.
func generateComponentDiagram() {
	d, err := diagram.New(diagram.Filename("components"), diagram.Label("diagramcheck Components"), diagram.Direction("TB"))
	if err != nil {
		log.WithError(err).Fatal("Failed to create component diagram")
	}

	cmd := programming.Language.Go(diagram.NodeLabel("cmd/diagramcheck"))
	config := programming.Language.Go(diagram.NodeLabel("pkg/config"))
	check := programming.Language.Go(diagram.NodeLabel("internal/check"))
	discovery := programming.Language.Go(diagram.NodeLabel("internal/discovery"))
	provision := programming.Language.Go(diagram.NodeLabel("internal/provision"))
	render := programming.Language.Go(diagram.NodeLabel("internal/render"))
	process := programming.Language.Go(diagram.NodeLabel("internal/process"))

	internal := diagram.NewGroup("internal").Label("Internal packages").Add(check, discovery, provision, render, process)

	d.Connect(cmd, config, diagram.Forward())
	d.Connect(cmd, check, diagram.Forward())
	d.Connect(cmd, discovery, diagram.Forward())
	d.Connect(check, provision, diagram.Forward())
	d.Connect(check, render, diagram.Forward())
	d.Connect(render, process, diagram.Forward())
	d.Group(internal)

	if err := d.Render(); err != nil {
		log.WithError(err).Fatal("Failed to render component diagram")
	}
}
