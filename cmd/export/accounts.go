package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ashmitsharp/tradebook/internal/exchanges"
)

const dateLayout = "2006-01-02"

type accountsFile struct {
	Accounts []exchanges.Account `yaml:"accounts"`
}

// loadAccounts reads the accounts file. ${VAR} references are expanded from
// the environment so secrets need not be stored in the file.
func loadAccounts(path string) ([]exchanges.Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading accounts file: %w", err)
	}

	var file accountsFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &file); err != nil {
		return nil, fmt.Errorf("parsing accounts file: %w", err)
	}
	if len(file.Accounts) == 0 {
		return nil, errors.New("accounts file lists no accounts")
	}

	seen := make(map[string]bool, len(file.Accounts))
	for _, acct := range file.Accounts {
		if err := acct.Validate(); err != nil {
			return nil, err
		}
		if seen[acct.Name] {
			return nil, fmt.Errorf("account %s listed twice", acct.Name)
		}
		seen[acct.Name] = true
	}
	return file.Accounts, nil
}

// resolveDates fills in the window. With days > 0 the window ends at end (or
// today) and spans days calendar days.
func resolveDates(start, end string, days int, now time.Time) (string, string, error) {
	if days <= 0 {
		if start == "" || end == "" {
			return "", "", errors.New("-start and -end are required unless -days is set")
		}
		return start, end, nil
	}

	last := now
	if end != "" {
		t, err := time.ParseInLocation(dateLayout, end, now.Location())
		if err != nil {
			return "", "", fmt.Errorf("invalid -end %q: %w", end, err)
		}
		last = t
	}
	first := last.AddDate(0, 0, -(days - 1))
	return first.Format(dateLayout), last.Format(dateLayout), nil
}
