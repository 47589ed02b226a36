package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/harrylevesque/qrticket/internal/crypto"
	"github.com/harrylevesque/qrticket/internal/secrets"
)

func main() {
	dir := flag.String("dir", ".", "directory to write master.key and server.secret into")
	flag.Parse()

	written, err := writeKeys(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	for _, p := range written {
		fmt.Printf("Key written to %s\n", p)
	}
}

// writeKeys creates both key files, refusing to touch either if one
// already exists.
func writeKeys(dir string) ([]string, error) {
	paths := []string{
		filepath.Join(dir, secrets.MasterKeyFile),
		filepath.Join(dir, secrets.ServerSecretFile),
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return nil, fmt.Errorf("%s already exists. Refusing to overwrite", p)
		}
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	for _, p := range paths {
		key, err := crypto.RandomBytes(secrets.MinLen)
		if err != nil {
			return nil, fmt.Errorf("generating random key: %w", err)
		}
		f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil {
			return nil, fmt.Errorf("writing %s: %w", p, err)
		}
		_, err = fmt.Fprintln(f, hex.EncodeToString(key))
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, fmt.Errorf("writing %s: %w", p, err)
		}
	}
	return paths, nil
}
