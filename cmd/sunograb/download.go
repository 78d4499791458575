package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sunograb/pkg/auth"
	"sunograb/pkg/config"
	"sunograb/pkg/logger"
	"sunograb/pkg/pipeline"
	"sunograb/pkg/session"
	"sunograb/pkg/ui"
)

var (
	// download command flags
	dlUsername     string
	dlPassword     string
	dlOutputDir    string
	dlFormats      []string
	dlHeadless     bool
	dlNoWait       bool
	dlFilterTitle  string
	dlFilterStatus string
	dlHasVideo     bool
	dlHasAudio     bool
	dlMinDate      string
	dlMaxDate      string
)

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Log in and download matching tracks from your library",
	Long: `Log into your account with an automated browser session, load the full
library listing, and download each matching track in the requested formats.

Tracks still generating are polled until they complete or the wait budget
runs out; a track that never completes is reported, not fatal. Files already
present in the output directory are skipped.`,
	Example: `  # Download everything, all formats
  sunograb download -u user@example.com -p secret

  # MP3 only, headless browser, custom output directory
  sunograb download -u user@example.com -p secret -f mp3 --headless -o ~/music

  # Only tracks whose title contains "love", created this January
  sunograb download --filter-title love --min-date 2025-01-01 --max-date 2025-01-31

  # Skip tracks that are still generating
  sunograb download --no-wait`,
	Args: cobra.NoArgs,
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().StringVarP(&dlUsername, "username", "u", "", "account username/email")
	downloadCmd.Flags().StringVarP(&dlPassword, "password", "p", "", "account password")
	downloadCmd.Flags().StringVarP(&dlOutputDir, "output", "o", "", "output directory for downloads (default: downloads)")
	downloadCmd.Flags().StringSliceVarP(&dlFormats, "formats", "f", nil, "formats to download: mp3, mp4, wav (default: all)")
	downloadCmd.Flags().BoolVar(&dlHeadless, "headless", false, "run the browser in headless mode")
	downloadCmd.Flags().BoolVar(&dlNoWait, "no-wait", false, "don't wait for track generation to complete")

	downloadCmd.Flags().StringVar(&dlFilterTitle, "filter-title", "", "only tracks whose title contains this text")
	downloadCmd.Flags().StringVar(&dlFilterStatus, "filter-status", "", "only tracks with this status (e.g. complete)")
	downloadCmd.Flags().BoolVar(&dlHasVideo, "has-video", false, "only tracks with a video rendition")
	downloadCmd.Flags().BoolVar(&dlHasAudio, "has-audio", false, "only tracks with an audio rendition")
	downloadCmd.Flags().StringVar(&dlMinDate, "min-date", "", "minimum creation date (ISO format: YYYY-MM-DD)")
	downloadCmd.Flags().StringVar(&dlMaxDate, "max-date", "", "maximum creation date (ISO format: YYYY-MM-DD)")
}

func runDownload(cmd *cobra.Command, args []string) error {
	flags := collectDownloadFlags(cmd)

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		ui.PrintError("Failed to initialize logging", err.Error())
		os.Exit(1)
	}

	resolveCredentials(cfg, log)
	if cfg.Credentials.Username == "" || cfg.Credentials.Password == "" {
		log.Error("missing credentials")
		ui.PrintError("Missing credentials", "provide -u/-p, a config file, SUNOGRAB_USERNAME/SUNOGRAB_PASSWORD, or 'sunograb auth login'")
		os.Exit(1)
	}

	ui.PrintInfo("Output directory", cfg.Download.OutputDir)
	ui.PrintInfo("Formats", fmt.Sprintf("%v", cfg.Download.Formats))

	p, err := pipeline.New(cfg, log)
	if err != nil {
		log.WithError(err).Error("failed to initialize pipeline")
		ui.PrintError("Failed to start browser session", err.Error())
		os.Exit(1)
	}

	report, err := p.Run()
	if err != nil {
		if errors.Is(err, session.ErrLoginRejected) {
			ui.PrintError("Login failed", "check your credentials")
		} else {
			ui.PrintError("Run failed", err.Error())
		}
		os.Exit(1)
	}

	if report.Total == 0 {
		ui.PrintWarning("No tracks matched the filter criteria")
		return nil
	}

	ui.PrintSuccess(fmt.Sprintf("Done: %d succeeded, %d failed (run %s)",
		report.Succeeded, report.Failed, report.RunID))
	return nil
}

// collectDownloadFlags maps only the flags the user actually set, so
// unset flags never mask config-file values.
func collectDownloadFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})

	if dlUsername != "" {
		flags["username"] = dlUsername
	}
	if dlPassword != "" {
		flags["password"] = dlPassword
	}
	if dlOutputDir != "" {
		flags["output"] = dlOutputDir
	}
	if len(dlFormats) > 0 {
		flags["formats"] = dlFormats
	}
	if cmd.Flags().Changed("headless") {
		flags["headless"] = dlHeadless
	}
	if dlNoWait {
		flags["no-wait"] = true
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	if dlFilterTitle != "" {
		flags["filter-title"] = dlFilterTitle
	}
	if dlFilterStatus != "" {
		flags["filter-status"] = dlFilterStatus
	}
	if dlHasVideo {
		flags["has-video"] = true
	}
	if dlHasAudio {
		flags["has-audio"] = true
	}
	if dlMinDate != "" {
		flags["min-date"] = dlMinDate
	}
	if dlMaxDate != "" {
		flags["max-date"] = dlMaxDate
	}

	return flags
}

// resolveCredentials falls back to the credential store chain when flags,
// config and environment did not provide a password.
func resolveCredentials(cfg *config.Config, log logger.Logger) {
	if cfg.Credentials.Username != "" && cfg.Credentials.Password != "" {
		return
	}

	mgr, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Debug("credential store unavailable")
		return
	}

	creds, err := mgr.Retrieve(cfg.Credentials.Username)
	if err != nil {
		log.Debug("no stored credentials found")
		return
	}

	cfg.Credentials.Username = creds.Username
	cfg.Credentials.Password = creds.Password
	log.WithField("username", creds.Username).Info("using stored credentials")
}
