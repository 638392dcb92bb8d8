package dbapi

import (
	"net"
	"time"

	"github.com/edgeflare/dbapi/pkg/httputil"
	"github.com/spf13/cobra"
)

var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Probe a running server's /healthz endpoint",
	Long: `Exits non-zero unless the server answers /healthz with 2xx before the timeout.
Intended as a container health check.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		if url == "" {
			url = localHealthURL(cfg.Server.ListenAddr)
		}
		timeout, _ := cmd.Flags().GetDuration("timeout")
		return httputil.Probe(cmd.Context(), url, httputil.ProbeConfig{
			Logger:     logger,
			MaxElapsed: timeout,
		})
	},
}

func init() {
	healthcheckCmd.Flags().String("url", "", "health endpoint (default derived from server.listenAddr)")
	healthcheckCmd.Flags().Duration("timeout", 5*time.Second, "give up after this long")
}

// localHealthURL turns a listen address such as ":8080" or "0.0.0.0:8080" into a loopback URL.
func localHealthURL(listenAddr string) string {
	host, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return "http://" + listenAddr + "/healthz"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/healthz"
}
