package main

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"recipebox/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Host the code screens over HTTP",
	Long: `Serves the screen host on server.host:server.port. The mobile shell drives
verification flows through /flows and renders their snapshots.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.RunOptions{}
		if !verbose {
			gin.SetMode(gin.ReleaseMode)
			// --verbose pins debug logging; otherwise log.level follows the file.
			opts = app.RunOptions{ConfigPath: configPath, Level: &logLevel}
		}
		return app.Run(cmd.Context(), cfg, logger, opts)
	},
}
