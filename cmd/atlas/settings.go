package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Hussein-Mazeh/atlas/internal/security"
	"github.com/Hussein-Mazeh/atlas/internal/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the security policy",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the security policy",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		printSettings(cmd, current.manager.Settings())
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change one or more policy fields",
	Example: `  atlas settings set --auto-lock 2m
  atlas settings set --auth-on-open=true --auth-for-sensitive=false`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := updateFromFlags(cmd)
		if err != nil {
			return err
		}
		if u == (settings.Update{}) {
			return userError{msg: "nothing to change; pass at least one flag"}
		}

		if err := current.authenticate(cmd.Context(), reasonPolicy); err != nil {
			return err
		}

		st, err := current.manager.UpdateSettings(cmd.Context(), u)
		if err != nil {
			return userError{msg: security.UserMessage(err)}
		}
		fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✓")+" Settings saved")
		printSettings(cmd, st)
		return nil
	},
}

// updateFromFlags builds a partial update from the flags the user passed.
func updateFromFlags(cmd *cobra.Command) (settings.Update, error) {
	var u settings.Update
	flags := cmd.Flags()

	boolFlag := func(name string, dst **bool) error {
		if !flags.Changed(name) {
			return nil
		}
		v, err := flags.GetBool(name)
		if err != nil {
			return userError{msg: fmt.Sprintf("invalid value for --%s", name)}
		}
		*dst = &v
		return nil
	}

	if err := boolFlag("auth-on-open", &u.RequireAuthOnAppOpen); err != nil {
		return u, err
	}
	if err := boolFlag("auth-for-sensitive", &u.RequireAuthForSensitiveData); err != nil {
		return u, err
	}
	if err := boolFlag("encryption", &u.EncryptionEnabled); err != nil {
		return u, err
	}
	if flags.Changed("auto-lock") {
		d, err := flags.GetDuration("auto-lock")
		if err != nil {
			return u, userError{msg: "invalid value for --auto-lock"}
		}
		u.AutoLockTimeout = &d
	}
	return u, nil
}

func printSettings(cmd *cobra.Command, st settings.Settings) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "auth-on-open:       %s\n", onOff(st.RequireAuthOnAppOpen))
	fmt.Fprintf(out, "auth-for-sensitive: %s\n", onOff(st.RequireAuthForSensitiveData))
	fmt.Fprintf(out, "auto-lock:          %s\n", st.AutoLockTimeout)
	fmt.Fprintf(out, "encryption:         %s\n", onOff(st.EncryptionEnabled))
}

func init() {
	f := settingsSetCmd.Flags()
	f.Bool("auth-on-open", false, "require authentication when the app opens")
	f.Bool("auth-for-sensitive", true, "require authentication before sensitive content")
	f.Duration("auto-lock", settings.DefaultAutoLockTimeout, "session timeout, e.g. 30s or 5m")
	f.Bool("encryption", true, "encrypt sensitive content")

	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)
}
