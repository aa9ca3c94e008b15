package chain

import (
	"fmt"
	"os"
	"strings"
)

// ReadCookieAuth parses a Bitcoin Core .cookie file (the node writes
// "__cookie__:<hex>" into its datadir on startup) into RPC user/pass.
func ReadCookieAuth(path string) (user, pass string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read rpc cookie file %q: %w", path, err)
	}

	line := strings.TrimSpace(string(data))
	parts := strings.SplitN(line, ":", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("malformed rpc cookie file %q: expected \"user:pass\"", path)
	}
	return parts[0], parts[1], nil
}
