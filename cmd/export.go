package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fabricguide/internal/export"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the blueprint as PNG, or as PDF when the screenshot fails",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		// Serve the page on a private port for the headless browser.
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		router, err := a.router(nil)
		if err != nil {
			return err
		}
		srv := &http.Server{Handler: router}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("export server stopped", zap.Error(err))
			}
		}()
		defer srv.Shutdown(context.Background())

		base := "http://" + ln.Addr().String()
		art, err := export.New(a.cfg.Export, base, a.logger).Export(ctx)
		if err != nil {
			return err
		}
		path := outputPath(exportOut, art)
		if err := os.WriteFile(path, art.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %d bytes)\n", path, art.Format, len(art.Data))
		return err
	},
}

// outputPath uses the artifact name when out is empty or a directory, and
// swaps the extension when the export fell back to another format.
func outputPath(out string, art *export.Artifact) string {
	if out == "" {
		return art.Name
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return filepath.Join(out, art.Name)
	}
	ext := filepath.Ext(out)
	if strings.EqualFold(ext, "."+string(art.Format)) {
		return out
	}
	return strings.TrimSuffix(out, ext) + "." + string(art.Format)
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file or directory (default Lestel-Fabric-Blueprint.<png|pdf>)")
	rootCmd.AddCommand(exportCmd)
}
