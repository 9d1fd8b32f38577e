package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/awnumar/memguard"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Hussein-Mazeh/atlas/auth"
	"github.com/Hussein-Mazeh/atlas/internal/encryption"
	"github.com/Hussein-Mazeh/atlas/internal/keystore"
	"github.com/Hussein-Mazeh/atlas/internal/security"
	"github.com/Hussein-Mazeh/atlas/krypto"
)

const (
	reasonEncrypt = "Encrypt content with Atlas"
	reasonDecrypt = "Reveal secured content"
	reasonKey     = "Change the Atlas encryption key"
	reasonPolicy  = "Change Atlas security settings"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the atlas version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), cliVersion)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the security level and policy",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m := current.manager
		st := m.Settings()
		out := cmd.OutOrStdout()

		level := m.SecurityLevel()
		var levelText string
		switch level {
		case security.LevelFull:
			levelText = color.GreenString(level.String())
		case security.LevelEncryptionOnly:
			levelText = color.YellowString(level.String())
		default:
			levelText = color.RedString(level.String())
		}

		backend := current.keystore
		if backend == "" {
			backend = "platform"
		}

		fmt.Fprintf(out, "Security level:     %s\n", levelText)
		fmt.Fprintf(out, "Encryption:         %s\n", onOff(st.EncryptionEnabled))
		fmt.Fprintf(out, "Key store:          %s\n", backend)
		fmt.Fprintf(out, "User presence:      %s\n", onOff(m.BiometricAvailable()))
		fmt.Fprintf(out, "Auth on app open:   %s\n", onOff(st.RequireAuthOnAppOpen))
		fmt.Fprintf(out, "Auth for sensitive: %s\n", onOff(st.RequireAuthForSensitiveData))
		fmt.Fprintf(out, "Auto-lock timeout:  %s\n", st.AutoLockTimeout)
		return nil
	},
}

var encryptBinary bool

var encryptCmd = &cobra.Command{
	Use:   "encrypt [text|-]",
	Short: "Encrypt text and print the record",
	Long:  "Encrypt the arguments, or stdin when none are given, and print the record as JSON (or base64 with --binary).",
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := readInput(args)
		if err != nil {
			return err
		}
		defer memguard.WipeBytes(input)
		if !utf8.Valid(input) {
			return userError{msg: security.UserMessage(encryption.ErrEncodingFailure)}
		}

		if err := current.authenticate(cmd.Context(), reasonEncrypt); err != nil {
			return err
		}

		rec, err := current.manager.Encrypt(input)
		if err != nil {
			return userError{msg: security.UserMessage(err)}
		}

		out := cmd.OutOrStdout()
		if encryptBinary {
			data, err := rec.MarshalBinary()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, base64.StdEncoding.EncodeToString(data))
			return nil
		}
		return json.NewEncoder(out).Encode(rec)
	},
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt <record|->",
	Short: "Decrypt a record printed by encrypt",
	Long:  "Decrypt a JSON or base64 binary record given as an argument or on stdin.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := readInput(args)
		if err != nil {
			return err
		}
		rec, err := parseRecord(input)
		if err != nil {
			return userError{msg: "input is not an Atlas record"}
		}

		if err := current.authenticate(cmd.Context(), reasonDecrypt); err != nil {
			return err
		}

		text, err := current.manager.DecryptString(rec)
		if err != nil {
			return userError{msg: security.UserMessage(err)}
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

// parseRecord accepts the JSON form or the base64 binary form.
func parseRecord(input []byte) (krypto.EncryptedRecord, error) {
	var rec krypto.EncryptedRecord
	trimmed := bytes.TrimSpace(input)
	if bytes.HasPrefix(trimmed, []byte("{")) {
		err := json.Unmarshal(trimmed, &rec)
		return rec, err
	}
	data, err := base64.StdEncoding.DecodeString(string(trimmed))
	if err != nil {
		return rec, err
	}
	err = rec.UnmarshalBinary(data)
	return rec, err
}

var rekeyCmd = &cobra.Command{
	Use:   "rekey",
	Short: "Replace the encryption key; existing records become unreadable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := current.authenticate(cmd.Context(), reasonKey); err != nil {
			return err
		}
		if err := current.manager.Rekey(); err != nil {
			return userError{msg: security.UserMessage(err)}
		}
		fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✓")+" Encryption key replaced")
		return nil
	},
}

var clearKeyYes bool

var clearKeyCmd = &cobra.Command{
	Use:   "clear-key",
	Short: "Destroy the encryption key; existing records are lost",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearKeyYes && !confirm("Destroy the encryption key? Everything encrypted with it is lost.") {
			return userError{msg: "aborted"}
		}
		if err := current.authenticate(cmd.Context(), reasonKey); err != nil {
			return err
		}
		if err := current.manager.ClearKey(); err != nil {
			return userError{msg: security.UserMessage(err)}
		}
		fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✓")+" Encryption key destroyed; run "+
			color.YellowString("atlas rekey")+" to create a new one")
		return nil
	},
}

var passcodeCmd = &cobra.Command{
	Use:   "passcode",
	Short: "Manage the device passcode used when biometrics are unavailable",
}

var passcodeSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set or replace the passcode",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if current.passcode.Available() {
			if err := current.verifyPasscode(cmd.Context()); err != nil {
				return err
			}
		}

		pc, err := promptPassword("New passcode: ")
		if err != nil {
			return fmt.Errorf("read passcode: %w", err)
		}
		defer memguard.WipeBytes(pc)

		again, err := promptPassword("Confirm passcode: ")
		if err != nil {
			return fmt.Errorf("read confirmation passcode: %w", err)
		}
		defer memguard.WipeBytes(again)

		if !bytes.Equal(pc, again) {
			return userError{msg: "passcodes do not match"}
		}

		if err := current.passcode.SetPasscode(cmd.Context(), pc); err != nil {
			if errors.Is(err, auth.ErrPasscodeTooShort) || errors.Is(err, auth.ErrPasscodeTooWeak) {
				return userError{msg: err.Error()}
			}
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✓")+" Passcode set")
		return nil
	},
}

var passcodeClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the passcode",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !current.passcode.Available() {
			return userError{msg: "no passcode is set"}
		}
		if err := current.verifyPasscode(cmd.Context()); err != nil {
			return err
		}
		if err := current.passcode.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✓")+" Passcode removed")
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the process configuration in effect",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Fprintf(out, "Config file: %s\n", used)
		} else {
			fmt.Fprintln(out, "Config file: none found")
		}
		for _, key := range []string{"data_dir", "keystore.backend", "cipher", "gate", "settings.store", "log.format", "log.level"} {
			fmt.Fprintf(out, "  %-18s %s\n", key, viper.GetString(key))
		}
		if backends := keystore.Backends(); len(backends) > 0 {
			fmt.Fprintf(out, "  %-18s %s\n", "keyring backends", strings.Join(backends, ", "))
		} else {
			fmt.Fprintf(out, "  %-18s %s\n", "keyring backends", "none available")
		}
		for _, env := range os.Environ() {
			if strings.HasPrefix(env, "ATLAS_") && strings.Contains(env, "PASSWORD") {
				fmt.Fprintln(out, "  keyring password   ***SET***")
			}
		}
		return nil
	},
}

func onOff(v bool) string {
	if v {
		return color.GreenString("on")
	}
	return color.RedString("off")
}

func init() {
	encryptCmd.Flags().BoolVar(&encryptBinary, "binary", false, "print the compact binary record as base64")
	clearKeyCmd.Flags().BoolVar(&clearKeyYes, "yes", false, "do not ask for confirmation")

	passcodeCmd.AddCommand(passcodeSetCmd, passcodeClearCmd)
	rootCmd.AddCommand(versionCmd, statusCmd, encryptCmd, decryptCmd, rekeyCmd, clearKeyCmd, passcodeCmd, settingsCmd, configShowCmd)
}
