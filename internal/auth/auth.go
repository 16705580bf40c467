package auth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/beekhof/bamboo-calendar-sync/internal/config"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

const (
	// callbackAddr is the redirect URI registered for the OAuth client. Any
	// free port is used when it is taken.
	callbackAddr = "127.0.0.1:8080"

	authTimeout = 5 * time.Minute
)

// TokenStore persists the OAuth token of the calendar account between runs.
type TokenStore interface {
	SaveToken(token *oauth2.Token) error
	LoadToken() (*oauth2.Token, error)
}

// savingTokenSource stores every token it has not handed out before, so a
// refresh during a scheduled run survives a restart.
type savingTokenSource struct {
	base  oauth2.TokenSource
	store TokenStore

	mu   sync.Mutex
	last *oauth2.Token
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last != nil && s.last.AccessToken == token.AccessToken {
		return token, nil
	}
	if err := s.store.SaveToken(token); err != nil {
		return nil, fmt.Errorf("failed to save refreshed token: %w", err)
	}
	s.last = token
	return token, nil
}

// callbackResult is what the browser redirect delivered.
type callbackResult struct {
	code string
	err  error
}

// callbackHandler answers the OAuth redirect. Requests that do not carry the
// expected state are refused and do not end the wait; the first accepted
// request delivers its code or error on results.
func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("state") != state {
			log.Printf("Warning: ignoring OAuth callback with unexpected state from %s", r.RemoteAddr)
			http.Error(w, "invalid state", http.StatusBadRequest)
			return
		}

		var result callbackResult
		switch {
		case query.Get("error") != "":
			result.err = fmt.Errorf("authorization error: %s", query.Get("error"))
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "<html><body><h1>Authorization failed</h1><p>Error: %s</p></body></html>", html.EscapeString(query.Get("error")))
		case query.Get("code") == "":
			result.err = errors.New("no authorization code received")
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, "<html><body><h1>No authorization code received</h1></body></html>")
		default:
			result.code = query.Get("code")
			fmt.Fprint(w, "<html><body><h1>Calendar access granted</h1><p>You can close this window.</p></body></html>")
		}

		select {
		case results <- result:
		default:
		}
	})
}

// callbackServer receives the OAuth redirect on a loopback address.
type callbackServer struct {
	server      *http.Server
	redirectURL string
	results     chan callbackResult
}

func startCallbackServer(state string) (*callbackServer, error) {
	listener, err := net.Listen("tcp", callbackAddr)
	if err != nil {
		listener, err = net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return nil, fmt.Errorf("failed to start local server: %w", err)
		}
	}

	results := make(chan callbackResult, 1)
	s := &callbackServer{
		server: &http.Server{
			Handler:           callbackHandler(state, results),
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      10 * time.Second,
		},
		redirectURL: "http://" + listener.Addr().String(),
		results:     results,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case results <- callbackResult{err: fmt.Errorf("server error: %w", err)}:
			default:
			}
		}
	}()

	return s, nil
}

func (s *callbackServer) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.server.Shutdown(ctx)
}

// authorize runs the interactive consent flow and returns the new token. It
// gives up after authTimeout or when ctx is cancelled.
func authorize(ctx context.Context, oauthConfig *oauth2.Config) (*oauth2.Token, error) {
	state := uuid.NewString()
	srv, err := startCallbackServer(state)
	if err != nil {
		return nil, err
	}
	defer srv.Close()

	flowConfig := *oauthConfig
	flowConfig.RedirectURL = srv.redirectURL
	authURL := flowConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	fmt.Printf("Starting local server on %s\n", srv.redirectURL)
	if srv.redirectURL != "http://"+callbackAddr {
		fmt.Printf("Note: port 8080 was unavailable. Add %s to the authorized redirect URIs of the OAuth client.\n", srv.redirectURL)
	}
	fmt.Println("\nPlease visit the following URL to grant access to the calendar:")
	fmt.Println(authURL)
	fmt.Println("\nWaiting for authorization...")

	waitCtx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	var code string
	select {
	case result := <-srv.results:
		if result.err != nil {
			return nil, fmt.Errorf("failed to receive authorization code: %w", result.err)
		}
		code = result.code
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return nil, fmt.Errorf("authorization cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("authorization timeout: no response received within %s", authTimeout)
	}

	token, err := flowConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return token, nil
}

// GetAuthenticatedClient returns an HTTP client for the OAuth account whose
// token is kept in tokenStore. Without a stored token the user is sent
// through the browser consent flow first.
func GetAuthenticatedClient(ctx context.Context, oauthConfig *oauth2.Config, tokenStore TokenStore) (*http.Client, error) {
	token, err := tokenStore.LoadToken()
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}

	if token == nil {
		token, err = authorize(ctx, oauthConfig)
		if err != nil {
			return nil, err
		}
		if err := tokenStore.SaveToken(token); err != nil {
			return nil, fmt.Errorf("failed to save token: %w", err)
		}
		fmt.Println("Authorization successful!")
	}

	source := &savingTokenSource{
		base:  oauth2.ReuseTokenSource(token, oauthConfig.TokenSource(ctx, token)),
		store: tokenStore,
		last:  token,
	}
	return oauth2.NewClient(ctx, source), nil
}

// NewClient returns an HTTP client authorized for the Google Calendar API.
// A service account key is used directly; an OAuth client ("installed" or
// "web") goes through GetAuthenticatedClient with the given token store.
func NewClient(ctx context.Context, credentialsPath string, tokenStore TokenStore) (*http.Client, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	if jwtConfig, err := google.JWTConfigFromJSON(data, calendar.CalendarScope); err == nil {
		return jwtConfig.Client(ctx), nil
	}

	clientID, clientSecret, err := config.ParseGoogleCredentials(data)
	if err != nil {
		return nil, err
	}

	oauthConfig := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       []string{calendar.CalendarScope},
		Endpoint:     google.Endpoint,
	}

	return GetAuthenticatedClient(ctx, oauthConfig, tokenStore)
}
