package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	baseURL string
	timeout time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "saldo-cli",
		Short: "Saldo ledger CLI tool",
		Long:  `A command line interface for operator tasks against the Saldo ledger API.`,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the ledger API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	trialBalanceCmd := &cobra.Command{
		Use:   "trial-balance",
		Short: "Print the per-konto trial balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printTrialBalance(newClient())
		},
	}

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Integrity verification",
	}

	verifyLedgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Re-verify every booked transaction, page by page",
		RunE: func(cmd *cobra.Command, args []string) error {
			return verifyLedger(newClient())
		},
	}

	verifyAuditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Re-verify the audit hash chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return verifyAudit(newClient())
		},
	}

	verifyCmd.AddCommand(verifyLedgerCmd, verifyAuditCmd)

	var auditActor, auditAction, auditRisk string
	var auditLimit int
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the audit trail",
		RunE: func(cmd *cobra.Command, args []string) error {
			return queryAudit(newClient(), auditActor, auditAction, auditRisk, auditLimit)
		},
	}
	auditCmd.Flags().StringVar(&auditActor, "actor", "", "Filter by actor ref, e.g. human:mkovac")
	auditCmd.Flags().StringVar(&auditAction, "action", "", "Filter by action kind")
	auditCmd.Flags().StringVar(&auditRisk, "risk", "", "Filter by risk level")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 50, "Maximum entries to return")

	proposalsCmd := &cobra.Command{
		Use:   "proposals",
		Short: "List open proposals awaiting review",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listProposals(newClient())
		},
	}

	rootCmd.AddCommand(trialBalanceCmd, verifyCmd, auditCmd, proposalsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// apiClient is a thin JSON client over the ledger HTTP API.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newClient() *apiClient {
	return &apiClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *apiClient) getJSON(path string, out any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	return json.Unmarshal(body, out)
}

type trialBalanceReply struct {
	Kontos []struct {
		Konto  string `json:"konto"`
		Debit  string `json:"debit"`
		Credit string `json:"credit"`
		Net    string `json:"net"`
	} `json:"kontos"`
	TotalDebit  string `json:"total_debit"`
	TotalCredit string `json:"total_credit"`
	Balanced    bool   `json:"balanced"`
}

func printTrialBalance(c *apiClient) error {
	var tb trialBalanceReply
	if err := c.getJSON("/api/v1/trial-balance", &tb); err != nil {
		return err
	}

	fmt.Printf("%-12s %15s %15s %15s\n", "KONTO", "DEBIT", "CREDIT", "NET")
	for _, kb := range tb.Kontos {
		fmt.Printf("%-12s %15s %15s %15s\n", kb.Konto, kb.Debit, kb.Credit, kb.Net)
	}
	fmt.Printf("%-12s %15s %15s\n", "TOTAL", tb.TotalDebit, tb.TotalCredit)

	if !tb.Balanced {
		return fmt.Errorf("trial balance is OUT OF BALANCE")
	}

	fmt.Println("Trial balance is balanced.")
	return nil
}

type integrityReply struct {
	Complete   bool     `json:"complete"`
	Valid      bool     `json:"valid"`
	Checked    int      `json:"checked"`
	Violations []string `json:"violations,omitempty"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

// verifyLedger walks every integrity page until the scan completes.
func verifyLedger(c *apiClient) error {
	cursor := ""
	var violations []string

	for {
		path := "/api/v1/integrity"
		if cursor != "" {
			path += "?cursor=" + url.QueryEscape(cursor)
		}

		var page integrityReply
		if err := c.getJSON(path, &page); err != nil {
			return err
		}

		violations = append(violations, page.Violations...)

		if page.Complete {
			fmt.Printf("Checked %d transactions.\n", page.Checked)
			for _, v := range violations {
				fmt.Printf("VIOLATION: %s\n", v)
			}
			if !page.Valid || len(violations) > 0 {
				return fmt.Errorf("ledger integrity check FAILED")
			}
			fmt.Println("Ledger integrity check PASSED.")
			return nil
		}

		cursor = page.NextCursor
	}
}

type chainReply struct {
	Valid          bool   `json:"valid"`
	EntriesChecked int    `json:"entries_checked"`
	FirstBreakSeq  *int64 `json:"first_break_seq,omitempty"`
}

func verifyAudit(c *apiClient) error {
	var report chainReply
	if err := c.getJSON("/api/v1/audit/verify", &report); err != nil {
		return err
	}

	fmt.Printf("Checked %d audit entries.\n", report.EntriesChecked)
	if !report.Valid {
		if report.FirstBreakSeq != nil {
			return fmt.Errorf("audit chain BROKEN at seq %d", *report.FirstBreakSeq)
		}
		return fmt.Errorf("audit chain BROKEN")
	}

	fmt.Println("Audit chain verification PASSED.")
	return nil
}

type auditEntryReply struct {
	Seq    int64     `json:"seq"`
	Actor  string    `json:"actor"`
	Action string    `json:"action"`
	Risk   string    `json:"risk"`
	At     time.Time `json:"at"`
}

func queryAudit(c *apiClient, actor, action, risk string, limit int) error {
	q := url.Values{}
	if actor != "" {
		q.Set("actor", actor)
	}
	if action != "" {
		q.Set("action", action)
	}
	if risk != "" {
		q.Set("risk", risk)
	}
	q.Set("limit", fmt.Sprint(limit))
	q.Set("privilege", "full")

	var entries []auditEntryReply
	if err := c.getJSON("/api/v1/audit/?"+q.Encode(), &entries); err != nil {
		return err
	}

	for _, e := range entries {
		fmt.Printf("%6d  %-25s  %-20s  %-8s  %s\n",
			e.Seq, e.At.Format(time.RFC3339), e.Action, e.Risk, e.Actor)
	}
	fmt.Printf("%d entries.\n", len(entries))
	return nil
}

type proposalReply struct {
	ProposalID  string `json:"proposal_id"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

func listProposals(c *apiClient) error {
	var proposals []proposalReply
	if err := c.getJSON("/api/v1/proposals/", &proposals); err != nil {
		return err
	}

	for _, p := range proposals {
		fmt.Printf("%-27s  %-10s  %s\n", p.ProposalID, p.Date, p.Description)
	}
	fmt.Printf("%d open proposals.\n", len(proposals))
	return nil
}
