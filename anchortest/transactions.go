package anchortest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/marwen-abid/wallet-sdk-go/core/crypto"
)

// transactionRecord is one transaction as the anchor stores it.
type transactionRecord struct {
	seq       int
	assetCode string
	fields    map[string]any
}

func (r *transactionRecord) get(key string) string {
	v, _ := r.fields[key].(string)
	return v
}

// transactionStore keeps transactions keyed by id, in insertion order.
type transactionStore struct {
	mu   sync.RWMutex
	seq  int
	byID map[string]*transactionRecord
}

func newTransactionStore() *transactionStore {
	return &transactionStore{byID: map[string]*transactionRecord{}}
}

// put stores a transaction and returns its insertion sequence.
func (s *transactionStore) put(assetCode string, fields map[string]any) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, _ := fields["id"].(string)
	if existing, ok := s.byID[id]; ok {
		existing.assetCode = assetCode
		existing.fields = copyFields(fields)
		return existing.seq
	}
	s.seq++
	s.byID[id] = &transactionRecord{seq: s.seq, assetCode: assetCode, fields: copyFields(fields)}
	return s.seq
}

func (s *transactionStore) update(id string, fields map[string]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byID[id]
	if !ok {
		return false
	}
	for k, v := range fields {
		record.fields[k] = v
	}
	return true
}

func (s *transactionStore) find(key, value string) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.byID {
		if record.get(key) == value {
			return copyFields(record.fields), true
		}
	}
	return nil, false
}

type transactionFilter struct {
	assetCode   string
	kind        string
	noOlderThan time.Time
	pagingID    string
	limit       int
}

// list returns matching transactions newest first.
func (s *transactionStore) list(f transactionFilter) []map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*transactionRecord, 0, len(s.byID))
	for _, record := range s.byID {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].seq > records[j].seq })

	var pagingSeq int
	if f.pagingID != "" {
		if record, ok := s.byID[f.pagingID]; ok {
			pagingSeq = record.seq
		}
	}

	out := []map[string]any{}
	for _, record := range records {
		if record.assetCode != f.assetCode {
			continue
		}
		if f.kind != "" && record.get("kind") != f.kind {
			continue
		}
		if pagingSeq != 0 && record.seq >= pagingSeq {
			continue
		}
		if !f.noOlderThan.IsZero() {
			startedAt, err := time.Parse(time.RFC3339, record.get("started_at"))
			if err == nil && startedAt.Before(f.noOlderThan) {
				continue
			}
		}
		out = append(out, copyFields(record.fields))
		if f.limit > 0 && len(out) == f.limit {
			break
		}
	}
	return out
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// AddTransaction stores (or replaces) a transaction for assetCode. fields
// must contain "id"; they are served verbatim.
func (a *Anchor) AddTransaction(assetCode string, fields map[string]any) {
	a.txs.put(assetCode, fields)
}

// UpdateTransaction merges fields into an existing transaction.
func (a *Anchor) UpdateTransaction(id string, fields map[string]any) error {
	if !a.txs.update(id, fields) {
		return fmt.Errorf("transaction %s not found", id)
	}
	return nil
}

// SetStatus changes a transaction's status.
func (a *Anchor) SetStatus(id, status string) error {
	return a.UpdateTransaction(id, map[string]any{"status": status})
}

// Transaction returns a copy of a stored transaction.
func (a *Anchor) Transaction(id string) (map[string]any, bool) {
	return a.txs.find("id", id)
}

func (a *Anchor) handleTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := transactionFilter{
		assetCode: q.Get("asset_code"),
		kind:      q.Get("kind"),
		pagingID:  q.Get("paging_id"),
	}
	if f.assetCode == "" {
		renderError(w, http.StatusBadRequest, "asset_code is required")
		return
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			renderError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		f.limit = limit
	}
	if raw := q.Get("no_older_than"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			renderError(w, http.StatusBadRequest, "invalid no_older_than")
			return
		}
		f.noOlderThan = t
	}

	renderJSON(w, http.StatusOK, map[string]any{"transactions": a.txs.list(f)})
}

func (a *Anchor) handleTransaction(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	for _, key := range []string{"id", "stellar_transaction_id", "external_transaction_id"} {
		value := q.Get(key)
		if value == "" {
			continue
		}
		tx, ok := a.txs.find(key, value)
		if !ok {
			renderError(w, http.StatusNotFound, "transaction not found")
			return
		}
		renderJSON(w, http.StatusOK, map[string]any{"transaction": tx})
		return
	}
	renderError(w, http.StatusBadRequest, "id, stellar_transaction_id or external_transaction_id is required")
}

// newID returns a random URL-safe identifier.
func newID() (string, error) {
	nonce, err := crypto.GenerateNonce(16)
	if err != nil {
		return "", err
	}
	return strings.NewReplacer("+", "", "/", "", "=", "").Replace(nonce), nil
}

func (a *Anchor) newTransaction(r *http.Request, assetCode, kind, status string) (map[string]any, int, error) {
	id, err := newID()
	if err != nil {
		return nil, 0, err
	}

	tx := map[string]any{
		"id":            id,
		"kind":          kind,
		"status":        status,
		"started_at":    time.Now().UTC().Format(time.RFC3339),
		"more_info_url": fmt.Sprintf("%s/tx/%s", a.URL(), id),
	}
	if account := accountFromContext(r.Context()); account != "" {
		if kind == "deposit" {
			tx["to"] = account
		} else {
			tx["from"] = account
		}
	}
	seq := a.txs.put(assetCode, tx)
	return tx, seq, nil
}

func (a *Anchor) handleInteractive(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := map[string]any{}
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
				renderError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		} else {
			if err := r.ParseForm(); err != nil {
				renderError(w, http.StatusBadRequest, "invalid form body")
				return
			}
			for k := range r.PostForm {
				params[k] = r.PostForm.Get(k)
			}
		}

		assetCode, _ := params["asset_code"].(string)
		if !a.supportsAsset(assetCode) {
			renderError(w, http.StatusBadRequest, "unsupported asset_code")
			return
		}

		tx, _, err := a.newTransaction(r, assetCode, kind, "incomplete")
		if err != nil {
			renderError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if amount, ok := params["amount"].(string); ok && amount != "" {
			a.txs.update(tx["id"].(string), map[string]any{"amount_in": amount})
		}

		renderJSON(w, http.StatusOK, map[string]string{
			"type": "interactive_customer_info_needed",
			"url":  fmt.Sprintf("%s/interactive?id=%s", a.URL(), tx["id"]),
			"id":   tx["id"].(string),
		})
	}
}

func (a *Anchor) handleSep6Deposit(w http.ResponseWriter, r *http.Request) {
	assetCode := r.URL.Query().Get("asset_code")
	if !a.supportsAsset(assetCode) {
		renderError(w, http.StatusBadRequest, "unsupported asset_code")
		return
	}

	tx, _, err := a.newTransaction(r, assetCode, "deposit", "pending_user_transfer_start")
	if err != nil {
		renderError(w, http.StatusInternalServerError, err.Error())
		return
	}

	renderJSON(w, http.StatusOK, map[string]any{
		"how": "Make a payment to Bank: 121122676 Account: 13719713158835300",
		"id":  tx["id"],
		"eta": 60,
		"instructions": map[string]any{
			"organization.bank_number": map[string]string{"value": "121122676", "description": "US bank routing number"},
		},
	})
}

func (a *Anchor) handleSep6Withdraw(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	assetCode := q.Get("asset_code")
	if !a.supportsAsset(assetCode) {
		renderError(w, http.StatusBadRequest, "unsupported asset_code")
		return
	}
	if q.Get("type") == "" {
		renderError(w, http.StatusBadRequest, "type is required")
		return
	}

	tx, seq, err := a.newTransaction(r, assetCode, "withdrawal", "pending_user_transfer_start")
	if err != nil {
		renderError(w, http.StatusInternalServerError, err.Error())
		return
	}
	memo := strconv.Itoa(seq)
	a.txs.update(tx["id"].(string), map[string]any{
		"withdraw_anchor_account": a.signingKey.Address(),
		"withdraw_memo":           memo,
		"withdraw_memo_type":      "id",
	})

	renderJSON(w, http.StatusOK, map[string]any{
		"account_id": a.signingKey.Address(),
		"memo_type":  "id",
		"memo":       memo,
		"id":         tx["id"],
	})
}

func (a *Anchor) supportsAsset(code string) bool {
	for _, c := range a.currencies {
		if c.Code == code {
			return true
		}
	}
	return false
}

func (a *Anchor) handleInfo(w http.ResponseWriter, r *http.Request) {
	deposit := map[string]any{}
	withdraw := map[string]any{}
	for _, c := range a.currencies {
		deposit[c.Code] = map[string]any{"enabled": true, "min_amount": 1, "max_amount": 10000}
		withdraw[c.Code] = map[string]any{
			"enabled": true,
			"types": map[string]any{
				"bank_account": map[string]any{
					"fields": map[string]any{
						"dest": map[string]any{"description": "bank account number"},
					},
				},
			},
		}
	}

	renderJSON(w, http.StatusOK, map[string]any{
		"deposit":  deposit,
		"withdraw": withdraw,
		"fee":      map[string]bool{"enabled": false},
		"features": map[string]bool{"account_creation": true, "claimable_balances": true},
	})
}
