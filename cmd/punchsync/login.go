package main

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/jgoulah/punchsync/internal/calendar"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize Google Calendar access and save the token",
	Long: `Prints a Google consent URL for the OAuth client in calendar.credentials_file.
After approving access, paste the authorization code here; the token is saved
to calendar.token_file and reused by sync.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	oauthCfg, err := calendar.OAuthConfig(cfg.GetCredentialsFile())
	if err != nil {
		return err
	}

	state := uuid.NewString()
	authURL := oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	fmt.Println("Open this URL in your browser and approve calendar access:")
	fmt.Printf("\n  %s\n\n", authURL)
	fmt.Print("Paste the authorization code (or the full redirect URL): ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading authorization code: %w", err)
	}
	code, err := authCode(strings.TrimSpace(line), state)
	if err != nil {
		return err
	}

	tok, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}

	if err := calendar.SaveToken(cfg.GetTokenFile(), tok); err != nil {
		return err
	}

	fmt.Printf("✓ Token saved to %s\n", cfg.GetTokenFile())
	return nil
}

// authCode accepts a bare code or the redirect URL the browser landed on
func authCode(input, state string) (string, error) {
	if input == "" {
		return "", fmt.Errorf("no authorization code entered")
	}
	if !strings.Contains(input, "code=") {
		return input, nil
	}

	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("parsing redirect URL: %w", err)
	}
	q := u.Query()
	if got := q.Get("state"); got != "" && got != state {
		return "", fmt.Errorf("state mismatch in redirect URL")
	}
	if code := q.Get("code"); code != "" {
		return code, nil
	}
	return "", fmt.Errorf("no code in redirect URL")
}
