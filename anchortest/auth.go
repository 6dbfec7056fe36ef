package anchortest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"

	"github.com/marwen-abid/wallet-sdk-go/core/crypto"
)

const (
	challengeNonceLength = 48
	challengeTimeout     = 5 * time.Minute
	challengeBaseFee     = int64(100)
)

type claimsContextKey struct{}

// nonceStore tracks outstanding challenge nonces; each can be consumed once.
type nonceStore struct {
	mu     sync.Mutex
	nonces map[string]time.Time
}

func newNonceStore() *nonceStore {
	return &nonceStore{nonces: map[string]time.Time{}}
}

func (s *nonceStore) add(nonce string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonces[nonce] = expiresAt
}

func (s *nonceStore) consume(nonce string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiresAt, ok := s.nonces[nonce]
	if !ok {
		return false
	}
	delete(s.nonces, nonce)
	return time.Now().Before(expiresAt)
}

// Challenge builds a signed SEP-10 challenge for account. A non-zero memo
// authenticates a user of a shared account.
func (a *Anchor) Challenge(account string, memo uint64, clientDomain string) (string, error) {
	if _, err := keypair.ParseAddress(account); err != nil {
		return "", fmt.Errorf("invalid account address: %w", err)
	}

	nonce, err := crypto.GenerateNonce(challengeNonceLength)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	maxTime := now.Add(challengeTimeout)
	a.nonces.add(nonce, maxTime)

	serverAccount := a.signingKey.Address()
	ops := []txnbuild.Operation{
		&txnbuild.ManageData{Name: a.Domain() + " auth", Value: []byte(nonce), SourceAccount: account},
		&txnbuild.ManageData{Name: "web_auth_domain", Value: []byte(a.Domain()), SourceAccount: serverAccount},
	}
	if clientDomain != "" {
		clientKey, ok := a.clientDomains[clientDomain]
		if !ok {
			return "", fmt.Errorf("unknown client domain %s", clientDomain)
		}
		ops = append(ops, &txnbuild.ManageData{Name: "client_domain", Value: []byte(clientDomain), SourceAccount: clientKey})
	}

	params := txnbuild.TransactionParams{
		SourceAccount:        &txnbuild.SimpleAccount{AccountID: serverAccount, Sequence: 0},
		IncrementSequenceNum: false,
		Operations:           ops,
		BaseFee:              challengeBaseFee,
		Preconditions: txnbuild.Preconditions{
			TimeBounds: txnbuild.NewTimebounds(now.Unix(), maxTime.Unix()),
		},
	}
	if memo != 0 {
		params.Memo = txnbuild.MemoID(memo)
	}

	tx, err := txnbuild.NewTransaction(params)
	if err != nil {
		return "", fmt.Errorf("failed to build challenge transaction: %w", err)
	}

	tx, err = tx.Sign(a.networkPassphrase, a.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign challenge transaction: %w", err)
	}
	return tx.Base64()
}

// VerifyChallenge checks a client-signed challenge and returns the
// authenticated subject: the account, or account:memo for shared accounts.
func (a *Anchor) VerifyChallenge(challengeXDR string) (string, error) {
	parsed, err := txnbuild.TransactionFromXDR(challengeXDR)
	if err != nil {
		return "", fmt.Errorf("failed to parse challenge transaction: %w", err)
	}

	tx, ok := parsed.Transaction()
	if !ok {
		return "", fmt.Errorf("challenge transaction must not be fee bump")
	}

	if tx.SourceAccount().AccountID != a.signingKey.Address() {
		return "", fmt.Errorf("challenge transaction source account must be the server signing key")
	}

	operations := tx.Operations()
	if len(operations) < 2 {
		return "", fmt.Errorf("challenge transaction must have at least two operations")
	}

	firstOp, ok := operations[0].(*txnbuild.ManageData)
	if !ok || firstOp.Name != a.Domain()+" auth" {
		return "", fmt.Errorf("invalid challenge operation")
	}
	if !a.nonces.consume(string(firstOp.Value)) {
		return "", fmt.Errorf("nonce already used or expired")
	}

	account := firstOp.SourceAccount
	required := []string{a.signingKey.Address(), account}
	for _, op := range operations[1:] {
		if data, ok := op.(*txnbuild.ManageData); ok && data.Name == "client_domain" {
			required = append(required, data.SourceAccount)
		}
	}

	hash, err := tx.Hash(a.networkPassphrase)
	if err != nil {
		return "", fmt.Errorf("failed to hash challenge transaction: %w", err)
	}

	for _, signer := range required {
		kp, err := keypair.ParseAddress(signer)
		if err != nil {
			return "", fmt.Errorf("invalid signer %s: %w", signer, err)
		}
		signed := false
		for _, sig := range tx.Signatures() {
			if kp.Verify(hash[:], sig.Signature) == nil {
				signed = true
				break
			}
		}
		if !signed {
			return "", fmt.Errorf("challenge transaction not signed by %s", signer)
		}
	}

	if memo, ok := tx.Memo().(txnbuild.MemoID); ok {
		return fmt.Sprintf("%s:%d", account, uint64(memo)), nil
	}
	return account, nil
}

// IssueToken returns a token for subject (an account, or account:memo).
func (a *Anchor) IssueToken(subject string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    a.URL() + "/auth",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.jwtTTL)),
	})
	return token.SignedString(a.jwtSecret)
}

func (a *Anchor) verifyToken(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(a.URL()+"/auth"))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (a *Anchor) handleChallenge(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if home := q.Get("home_domain"); home != "" && home != a.Domain() {
		renderError(w, http.StatusBadRequest, "invalid home_domain")
		return
	}

	var memo uint64
	if raw := q.Get("memo"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			renderError(w, http.StatusBadRequest, "invalid memo")
			return
		}
		memo = parsed
	}

	challenge, err := a.Challenge(q.Get("account"), memo, q.Get("client_domain"))
	if err != nil {
		renderError(w, http.StatusBadRequest, err.Error())
		return
	}

	renderJSON(w, http.StatusOK, map[string]string{
		"transaction":        challenge,
		"network_passphrase": a.networkPassphrase,
	})
}

func (a *Anchor) handleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Transaction string `json:"transaction"`
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			renderError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	} else {
		req.Transaction = r.FormValue("transaction")
	}

	subject, err := a.VerifyChallenge(req.Transaction)
	if err != nil {
		renderError(w, http.StatusUnauthorized, err.Error())
		return
	}

	token, err := a.IssueToken(subject)
	if err != nil {
		renderError(w, http.StatusInternalServerError, err.Error())
		return
	}
	renderJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (a *Anchor) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if !strings.HasPrefix(header, "Bearer ") || token == "" {
			renderError(w, http.StatusForbidden, "missing bearer token")
			return
		}

		claims, err := a.verifyToken(token)
		if err != nil {
			renderError(w, http.StatusForbidden, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func accountFromContext(ctx context.Context) string {
	claims, ok := ctx.Value(claimsContextKey{}).(*jwt.RegisteredClaims)
	if !ok {
		return ""
	}
	account, _, _ := strings.Cut(claims.Subject, ":")
	return account
}
