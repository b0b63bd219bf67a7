package auth

import (
	"fmt"
	"io"
	"strings"
)

// WriteAPIKeyGuide prints where to find the catalog API key
func WriteAPIKeyGuide(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "M-TEAM API KEY")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The harvester talks to the M-Team API with a personal access token.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  1. Log in to the site in your browser")
	fmt.Fprintln(w, "  2. Open Control Panel -> Laboratory -> Access Token")
	fmt.Fprintln(w, "  3. Create a token and copy it")
	fmt.Fprintln(w, "  4. Paste it at the prompt below, or export "+EnvAPIKey)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The token is stored in the system keychain when one is available,")
	fmt.Fprintln(w, "otherwise in an encrypted file in your config directory.")
	fmt.Fprintln(w, "Anyone holding it can spend your daily download quota.")
	fmt.Fprintln(w, strings.Repeat("=", 72))
}
