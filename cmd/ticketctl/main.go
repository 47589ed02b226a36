package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/harrylevesque/qrticket/internal/models"
	"golang.org/x/term"
)

// Default server base URL; override with QRTICKET_SERVER or -server.
var serverBaseURL = "http://localhost:8080"

var httpClient = &http.Client{Timeout: 15 * time.Second}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("ticketctl", flag.ContinueOnError)
	cmd := fs.String("cmd", "issue", "Command: issue|verify")
	serverFlag := fs.String("server", "", "Override server base URL")

	var f models.TicketFields
	fs.StringVar(&f.FullName, "name", "", "full name")
	fs.StringVar(&f.Email, "email", "", "email address")
	fs.StringVar(&f.CitizenID, "citizen-id", "", "citizen id")
	fs.StringVar(&f.BirthDate, "birth-date", "", "birth date, YYYY-MM-DD")
	fs.StringVar(&f.Gender, "gender", "", "gender")
	fs.StringVar(&f.District, "district", "", "district")
	fs.StringVar(&f.City, "city", "", "city")

	qrData := fs.String("qr", "", "scanned QR payload (verify)")
	serverData := fs.String("server-payload", "", "server payload (verify); prompted when omitted")
	ref := fs.String("ref", "", "ticket reference to look up the server payload (verify)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	base := serverBaseURL
	if env := os.Getenv("QRTICKET_SERVER"); env != "" {
		base = env
	}
	if *serverFlag != "" {
		base = *serverFlag
	}
	base = strings.TrimRight(base, "/")

	switch *cmd {
	case "issue":
		return issue(base, f, out)
	case "verify":
		if *qrData == "" {
			return errors.New("-qr required")
		}
		if *serverData == "" && *ref == "" {
			p, err := promptServerPayload()
			if err != nil {
				return err
			}
			*serverData = p
		}
		return verify(base, *qrData, *serverData, *ref, out)
	default:
		return fmt.Errorf("unknown command %q", *cmd)
	}
}

func issue(base string, f models.TicketFields, out io.Writer) error {
	body, status, err := postJSON(base+"/tickets", f)
	if err != nil {
		return fmt.Errorf("post ticket: %w", err)
	}
	if status != http.StatusCreated {
		return fmt.Errorf("server returned status %d: %s", status, strings.TrimSpace(string(body)))
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		return fmt.Errorf("decode server response: %w", err)
	}
	fmt.Fprintln(out, pretty.String())
	return nil
}

func verify(base, qrData, serverData, ref string, out io.Writer) error {
	payload := map[string]string{"qr_data": qrData}
	if serverData != "" {
		payload["server_data"] = serverData
	} else {
		payload["ticket_ref"] = ref
	}
	body, status, err := postJSON(base+"/tickets/verify", payload)
	if err != nil {
		return fmt.Errorf("post verify: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("server returned status %d: %s", status, strings.TrimSpace(string(body)))
	}
	var res struct {
		Valid bool `json:"valid"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return fmt.Errorf("decode server response: %w", err)
	}
	if res.Valid {
		fmt.Fprintln(out, "VALID")
	} else {
		fmt.Fprintln(out, "INVALID")
	}
	return nil
}

func promptServerPayload() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("-server-payload or -ref required")
	}
	fmt.Fprint(os.Stderr, "Server payload: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func postJSON(url string, payload any) ([]byte, int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}
	resp, err := httpClient.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return b, resp.StatusCode, nil
}
