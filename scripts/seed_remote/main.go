// Command seed_remote loads a development remote store with sample roster
// entries and student accounts so the sync engine has something to merge.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"
)

type rosterEntry struct {
	InternalID string `json:"internalId"`
	StudentID  string `json:"studentId"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email,omitempty"`
	Course     string `json:"course,omitempty"`
	Year       string `json:"year,omitempty"`
	Section    string `json:"section,omitempty"`
}

type account struct {
	AccountID string `json:"accountId"`
	Role      string `json:"role"`
	StudentID string `json:"studentId"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

var firstNames = []string{"Juan", "Maria", "Jose", "Ana", "Pedro", "Liza", "Carlo", "Grace"}
var lastNames = []string{"Dela Cruz", "Santos", "Reyes", "Garcia", "Mendoza", "Flores", "Ramos", "Torres"}

func main() {
	baseURL := flag.String("base-url", "http://localhost:4000", "remote store base URL")
	count := flag.Int("count", 20, "number of roster entries to create")
	registered := flag.Int("registered", 5, "how many of them also get a student account")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	for i := 0; i < *count; i++ {
		studentID := fmt.Sprintf("SCC-22-%08d", i+1)
		entry := rosterEntry{
			InternalID: fmt.Sprintf("seed-%d", i+1),
			StudentID:  studentID,
			FirstName:  firstNames[i%len(firstNames)],
			LastName:   lastNames[i%len(lastNames)],
			Course:     "BSIT",
			Year:       fmt.Sprintf("%d", i%4+1),
			Section:    string(rune('A' + i%3)),
		}
		if err := put(client, fmt.Sprintf("%s/v1/roster/%s", *baseURL, studentID), entry); err != nil {
			log.Fatalf("seed roster %s: %v", studentID, err)
		}

		if i < *registered {
			acct := account{
				AccountID: fmt.Sprintf("acct-%d", i+1),
				Role:      "student",
				StudentID: studentID,
				Email:     fmt.Sprintf("student%d@example.edu", i+1),
				FirstName: entry.FirstName,
				LastName:  entry.LastName,
			}
			if err := put(client, fmt.Sprintf("%s/v1/accounts/%s", *baseURL, acct.AccountID), acct); err != nil {
				log.Fatalf("seed account %s: %v", acct.AccountID, err)
			}
		}
	}

	log.Printf("seeded %d roster entries (%d with accounts) at %s", *count, *registered, *baseURL)
}

func put(client *http.Client, url string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
