package config

import (
	"flag"
	"io"
	"strings"
)

var knownFlags = []string{"-a", "-q", "-s", "-p", "-k", "-e", "-w", "-r", "-z", "-l", "-f", "-t", "-tls-cert", "-tls-key"}

// parseFlags overrides cfg with the server flags found in args. Other
// arguments, including -c/-config, are ignored.
//
//	-a string    listen address
//	-q string    directory for rendered QR images
//	-s string    store backend: json or sqlite
//	-p string    store path
//	-k string    directory holding master.key and server.secret
//	-e string    aead algorithm: aes-256-gcm or xchacha20-poly1305
//	-w duration  ticket validity window, 0 disables expiry
//	-r string    citizen id regular expression
//	-z int       QR image size in pixels
//	-l string    log level
//	-f string    log file, empty for stderr
//	-t duration  graceful shutdown timeout
//	-tls-cert    PEM certificate; serve HTTPS when set with -tls-key
//	-tls-key     PEM private key
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("qrticket", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ListenAddr, "a", cfg.ListenAddr, "listen address")
	fs.StringVar(&cfg.QRDir, "q", cfg.QRDir, "qr image directory")
	fs.StringVar(&cfg.StoreBackend, "s", cfg.StoreBackend, "store backend (json|sqlite)")
	fs.StringVar(&cfg.StorePath, "p", cfg.StorePath, "store path")
	fs.StringVar(&cfg.SecretsDir, "k", cfg.SecretsDir, "secrets directory")
	fs.StringVar(&cfg.AEAD, "e", cfg.AEAD, "aead algorithm")
	fs.DurationVar(&cfg.ValidityWindow, "w", cfg.ValidityWindow, "ticket validity window")
	fs.StringVar(&cfg.CitizenIDPattern, "r", cfg.CitizenIDPattern, "citizen id pattern")
	fs.IntVar(&cfg.QRSize, "z", cfg.QRSize, "qr image size")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogFile, "f", cfg.LogFile, "log file")
	fs.DurationVar(&cfg.ShutdownTimeout, "t", cfg.ShutdownTimeout, "shutdown timeout")
	fs.StringVar(&cfg.TLSCertFile, "tls-cert", cfg.TLSCertFile, "tls certificate file")
	fs.StringVar(&cfg.TLSKeyFile, "tls-key", cfg.TLSKeyFile, "tls key file")

	if err := fs.Parse(filterArgs(args, knownFlags)); err != nil {
		return err
	}
	cfg.StoreBackend = strings.ToLower(cfg.StoreBackend)
	return nil
}

// filterArgs keeps only the allowed flags and their values, in either the
// "-f value" or "-f=value" form.
func filterArgs(args, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if name, _, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(arg, "-") {
			if _, keep := allowed[name]; keep {
				filtered = append(filtered, arg)
			}
			continue
		}
		if _, keep := allowed[arg]; keep {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}
	return filtered
}
