//go:build !darwin && !linux

package ledger

import "fmt"

func filesystemType(string) (string, error) {
	return "", fmt.Errorf("cannot detect the filesystem type on this platform")
}
