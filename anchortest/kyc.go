package anchortest

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi"
)

var requiredCustomerFields = []string{"first_name", "last_name", "email_address"}

type customerStore struct {
	mu        sync.Mutex
	customers map[string]map[string]string
}

func newCustomerStore() *customerStore {
	return &customerStore{customers: map[string]map[string]string{}}
}

// Customer returns the KYC fields stored for account.
func (a *Anchor) Customer(account string) (map[string]string, bool) {
	a.customers.mu.Lock()
	defer a.customers.mu.Unlock()
	fields, ok := a.customers.customers[account]
	return fields, ok
}

func (a *Anchor) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	account := q.Get("id")
	if account == "" {
		account = q.Get("account")
	}
	if account == "" {
		account = accountFromContext(r.Context())
	}

	stored, _ := a.Customer(account)

	missing := map[string]any{}
	provided := map[string]any{}
	for _, name := range requiredCustomerFields {
		field := map[string]any{"type": "string", "description": name}
		if _, ok := stored[name]; ok {
			field["status"] = "ACCEPTED"
			provided[name] = field
		} else {
			missing[name] = field
		}
	}

	resp := map[string]any{"status": "ACCEPTED"}
	if stored != nil {
		resp["id"] = account
	}
	if len(missing) > 0 {
		resp["status"] = "NEEDS_INFO"
		resp["fields"] = missing
	}
	if len(provided) > 0 {
		resp["provided_fields"] = provided
	}
	renderJSON(w, http.StatusOK, resp)
}

func (a *Anchor) handlePutCustomer(w http.ResponseWriter, r *http.Request) {
	var fields map[string]string
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		renderError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account := fields["id"]
	if account == "" {
		account = fields["account"]
	}
	if account == "" {
		account = accountFromContext(r.Context())
	}

	a.customers.mu.Lock()
	existing := a.customers.customers[account]
	if existing == nil {
		existing = map[string]string{}
		a.customers.customers[account] = existing
	}
	for k, v := range fields {
		if k != "id" && k != "account" {
			existing[k] = v
		}
	}
	a.customers.mu.Unlock()

	renderJSON(w, http.StatusAccepted, map[string]string{"id": account})
}

func (a *Anchor) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	if account != accountFromContext(r.Context()) {
		renderError(w, http.StatusForbidden, "cannot delete another account")
		return
	}

	a.customers.mu.Lock()
	_, ok := a.customers.customers[account]
	delete(a.customers.customers, account)
	a.customers.mu.Unlock()

	if !ok {
		renderError(w, http.StatusNotFound, "customer not found")
		return
	}
	w.WriteHeader(http.StatusOK)
}
