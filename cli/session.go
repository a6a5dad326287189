// ABOUTME: Session CLI commands
// ABOUTME: Stores and clears the signed-in identity used for remote access
package cli

import (
	"flag"
	"fmt"

	"github.com/coldflow/coldflow/remote"
)

// LoginCommand stores a session identity and token for remote sync.
func LoginCommand(session *remote.FileSession, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "Account email (required)")
	token := fs.String("token", "", "Access token (required)")
	_ = fs.Parse(args)

	if *email == "" || *token == "" {
		return fmt.Errorf("--email and --token are required")
	}

	if err := session.Write(*email, *token); err != nil {
		return err
	}
	fmt.Printf("Signed in as %s\n", *email)
	return nil
}

// LogoutCommand clears the stored session.
func LogoutCommand(session *remote.FileSession, args []string) error {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	_ = fs.Parse(args)

	if err := session.Clear(); err != nil {
		return err
	}
	fmt.Println("Signed out")
	return nil
}
