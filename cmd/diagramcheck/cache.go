package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/toozej/diagramcheck/internal/check"
	"github.com/toozej/diagramcheck/internal/provision"
)

// newCacheCmd creates the cache management command.
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the renderer dependency cache",
	}

	cmd.AddCommand(newCachePathCmd(), newCacheClearCmd(), newCacheWarmCmd())
	return cmd
}

func newCachePathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := conf.Cache.AbsDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the downloaded PlantUML jar and stdlib",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheClear(cmd.OutOrStdout())
		},
	}
}

func newCacheWarmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "warm",
		Short: "Download the PlantUML jar and stdlib if they are not cached",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			session, err := newSession()
			if err != nil {
				return err
			}
			assets, err := session.PlantUMLAssets(ctx)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, styleSuccess.Render(iconSuccess)+" PlantUML dependencies cached")
			printKeyValue(w, "jar", assets.Jar)
			printKeyValue(w, "stdlib", assets.Stdlib)
			return nil
		},
	}
}

func runCacheClear(w io.Writer) error {
	prov, err := newProvisioner()
	if err != nil {
		return err
	}

	count, err := prov.Clear()
	if err != nil {
		return err
	}
	if count == 0 {
		fmt.Fprintln(w, styleDim.Render("Cache is empty"))
		return nil
	}

	fmt.Fprintln(w, styleSuccess.Render(iconSuccess)+fmt.Sprintf(" Cleared %d cached entries", count))
	printKeyValue(w, "directory", prov.Root())
	return nil
}

func newProvisioner() (*provision.Provisioner, error) {
	dir, err := conf.Cache.AbsDir()
	if err != nil {
		return nil, fmt.Errorf("get cache dir: %w", err)
	}
	return provision.New(dir, provision.NewHTTPFetcher(conf.Cache.Timeout())), nil
}

func newSession() (*check.Session, error) {
	prov, err := newProvisioner()
	if err != nil {
		return nil, err
	}
	return check.NewSession(prov,
		provision.PlantUMLJar(conf.PlantUML.JarURL, conf.PlantUML.JarSHA256),
		provision.PlantUMLStdlib(conf.PlantUML.StdlibURL),
	), nil
}
