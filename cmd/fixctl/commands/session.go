package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and manage FIX sessions",
	}

	cmd.AddCommand(sessionListCmd())
	cmd.AddCommand(sessionShowCmd())
	cmd.AddCommand(sessionEnableCmd())
	cmd.AddCommand(sessionDisableCmd())
	cmd.AddCommand(sessionDisconnectCmd())
	cmd.AddCommand(sessionResetCmd())

	return cmd
}

// --- session list ---

func sessionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all FIX sessions",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			sessions, err := client.listSessions()
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}

			out, err := formatSessions(sessions, outputFormat)
			if err != nil {
				return fmt.Errorf("format sessions: %w", err)
			}

			fmt.Print(out)
			return nil
		},
	}
}

// --- session show ---

func sessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <begin> <sender> <target>",
		Short: "Show details of one FIX session",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			sess, err := client.getSession(args[0], args[1], args[2])
			if err != nil {
				return fmt.Errorf("get session: %w", err)
			}

			out, err := formatSession(sess, outputFormat)
			if err != nil {
				return fmt.Errorf("format session: %w", err)
			}

			fmt.Print(out)
			return nil
		},
	}
}

// --- session enable / disable ---

func sessionEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <begin> <sender> <target>",
		Short: "Administratively enable a FIX session",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			return setEnabledAndPrint(args[0], args[1], args[2], true)
		},
	}
}

func sessionDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <begin> <sender> <target>",
		Short: "Administratively disable a FIX session",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			return setEnabledAndPrint(args[0], args[1], args[2], false)
		},
	}
}

func setEnabledAndPrint(begin, sender, target string, enabled bool) error {
	sess, err := client.setEnabled(begin, sender, target, enabled)
	if err != nil {
		return fmt.Errorf("set enabled: %w", err)
	}

	out, err := formatSession(sess, outputFormat)
	if err != nil {
		return fmt.Errorf("format session: %w", err)
	}

	fmt.Print(out)
	return nil
}

// --- session disconnect ---

func sessionDisconnectCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "disconnect <begin> <sender> <target>",
		Short: "Disconnect a FIX session's transport",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			sess, err := client.disconnect(args[0], args[1], args[2], reason)
			if err != nil {
				return fmt.Errorf("disconnect session: %w", err)
			}

			out, err := formatSession(sess, outputFormat)
			if err != nil {
				return fmt.Errorf("format session: %w", err)
			}

			fmt.Print(out)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the daemon's logs")
	return cmd
}

// --- session reset ---

func sessionResetCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reset <begin> <sender> <target>",
		Short: "Logout, disconnect, and zero both sequence numbers",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			sess, err := client.reset(args[0], args[1], args[2], reason)
			if err != nil {
				return fmt.Errorf("reset session: %w", err)
			}

			out, err := formatSession(sess, outputFormat)
			if err != nil {
				return fmt.Errorf("format session: %w", err)
			}

			fmt.Print(out)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the daemon's logs")
	return cmd
}
