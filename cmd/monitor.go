package cmd

import (
	"fmt"
	"net"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/themateplatform/codemate/internal/hub"
	"github.com/themateplatform/codemate/internal/ui/monitor"
)

var (
	flagServer string
	flagRoom   string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch who is editing where",
	Long: `Open the presence monitor: a live roster of the room's collaborators
and a grid of their cursors. Click a name to follow it.`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVar(&flagServer, "server", "", "studio server URL (default derived from server.listen)")
	monitorCmd.Flags().StringVar(&flagRoom, "room", hub.DefaultRoom, "room to watch")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	if err := setupLogging(true); err != nil {
		return err
	}

	base := studioURL()
	room := flagRoom
	dial := func() (monitor.Stream, error) {
		l, err := hub.Dial(cmd.Context(), base, room)
		if err != nil {
			return nil, err
		}
		return l, nil
	}

	p := tea.NewProgram(monitor.New(room, dial),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running monitor: %w", err)
	}
	return nil
}

// studioURL resolves where the studio server lives. An explicit
// --server wins; otherwise the configured listen address is treated as
// local, with wildcard hosts mapped to localhost.
func studioURL() string {
	if flagServer != "" {
		return flagServer
	}

	host, port, err := net.SplitHostPort(cfg.Server.Listen)
	if err != nil {
		return "http://localhost:8080"
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}
