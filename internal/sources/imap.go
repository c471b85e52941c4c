package sources

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sort"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	id "github.com/emersion/go-imap-id"
	"github.com/emersion/go-sasl"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/dragon-zzuni/smart-assistant/internal/ingest"
)

// DefaultIMAPLimit is how many unseen messages an IMAP source fetches
const DefaultIMAPLimit = 50

// IMAPConfig describes one IMAP inbox
type IMAPConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	UseSSL   bool   `json:"use_ssl" yaml:"use_ssl"`
	Mailbox  string `json:"mailbox" yaml:"mailbox"`
	Limit    int    `json:"limit" yaml:"limit"`

	// XOAUTH2 is used instead of the password when a refresh token is set
	OAuthClientID     string `json:"oauth_client_id" yaml:"oauth_client_id"`
	OAuthClientSecret string `json:"oauth_client_secret" yaml:"oauth_client_secret"`
	OAuthRefreshToken string `json:"oauth_refresh_token" yaml:"oauth_refresh_token"`
}

// IMAPSource reads unseen messages from an IMAP mailbox
type IMAPSource struct {
	cfg IMAPConfig
}

// NewIMAPSource creates a new IMAPSource instance
func NewIMAPSource(cfg IMAPConfig) *IMAPSource {
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultIMAPLimit
	}
	return &IMAPSource{cfg: cfg}
}

// Name returns the source name
func (s *IMAPSource) Name() string {
	return "imap:" + s.cfg.Username
}

// Collect fetches the newest unseen messages without marking them read
func (s *IMAPSource) Collect(ctx context.Context) ([]ingest.Record, error) {
	c, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	if _, err := c.Select(s.cfg.Mailbox, true); err != nil {
		return nil, fmt.Errorf("%w: select %s: %v", ErrSourceUnavailable, s.cfg.Mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	seqNums, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrSourceUnavailable, err)
	}
	if len(seqNums) == 0 {
		return nil, nil
	}

	sort.Slice(seqNums, func(i, j int) bool { return seqNums[i] < seqNums[j] })
	if len(seqNums) > s.cfg.Limit {
		seqNums = seqNums[len(seqNums)-s.cfg.Limit:]
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNums...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope, section.FetchItem()}
	messages := make(chan *imap.Message, len(seqNums))
	done := make(chan error, 1)

	go func() {
		done <- c.Fetch(seqSet, items, messages)
	}()

	var records []ingest.Record
	for msg := range messages {
		if msg == nil {
			continue
		}
		rec, err := parseIMAPMessage(msg, section)
		if err != nil {
			log.WithFields(log.Fields{
				"source": s.Name(),
				"uid":    msg.Uid,
				"error":  err.Error(),
			}).Warn("[Sources] Failed to parse IMAP message")
			continue
		}
		records = append(records, ingest.FromMail(s.Name(), len(records), rec))
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("%w: fetch: %v", ErrSourceUnavailable, err)
	}

	return records, nil
}

func (s *IMAPSource) connect(ctx context.Context) (*client.Client, error) {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	dialer := &net.Dialer{Timeout: 10 * time.Second}

	var conn net.Conn
	var err error
	if s.cfg.UseSSL {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: s.cfg.Host}}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	c, err := client.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	c.Timeout = 2 * time.Minute

	// Some providers refuse LOGIN until the client identifies itself
	if ok, _ := c.Support("ID"); ok {
		if _, err := id.NewClient(c).ID(id.ID{
			id.FieldName:    "smart-assistant",
			id.FieldVersion: "1.0.0",
		}); err != nil {
			log.WithField("error", err.Error()).Debug("[Sources] IMAP ID command rejected")
		}
	}

	if s.cfg.OAuthRefreshToken != "" {
		token, err := s.accessToken(ctx)
		if err != nil {
			c.Logout()
			return nil, fmt.Errorf("%w: refresh OAuth token: %v", ErrSourceUnavailable, err)
		}
		if err := c.Authenticate(NewXOAuth2Client(s.cfg.Username, token)); err != nil {
			c.Logout()
			return nil, fmt.Errorf("%w: XOAUTH2 authentication failed: %v", ErrSourceUnavailable, err)
		}
		return c, nil
	}

	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("%w: login failed: %v", ErrSourceUnavailable, err)
	}
	return c, nil
}

// accessToken exchanges the configured refresh token for an access token
func (s *IMAPSource) accessToken(ctx context.Context) (string, error) {
	conf := &oauth2.Config{
		ClientID:     s.cfg.OAuthClientID,
		ClientSecret: s.cfg.OAuthClientSecret,
		Endpoint:     google.Endpoint,
	}
	token, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: s.cfg.OAuthRefreshToken}).Token()
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

func parseIMAPMessage(msg *imap.Message, section *imap.BodySectionName) (ingest.MailRecord, error) {
	var rec ingest.MailRecord
	if env := msg.Envelope; env != nil {
		rec.ID = env.MessageId
		rec.Subject = env.Subject
		rec.Date = env.Date
		if len(env.From) > 0 {
			rec.From = formatIMAPAddress(env.From[0])
		}
		for _, addr := range env.To {
			rec.To = append(rec.To, formatIMAPAddress(addr))
		}
	}

	if literal := msg.GetBody(section); literal != nil {
		raw, err := io.ReadAll(literal)
		if err != nil {
			return rec, err
		}
		if err := parseMIME(raw, &rec); err != nil {
			return rec, err
		}
	}

	if rec.ID == "" {
		rec.ID = fmt.Sprintf("uid:%d", msg.Uid)
	}
	return rec, nil
}

func formatIMAPAddress(addr *imap.Address) string {
	if addr.PersonalName != "" {
		return fmt.Sprintf("%s <%s@%s>", addr.PersonalName, addr.MailboxName, addr.HostName)
	}
	return fmt.Sprintf("%s@%s", addr.MailboxName, addr.HostName)
}

// XOAuth2Client implements the SASL XOAUTH2 mechanism
type XOAuth2Client struct {
	Username    string
	AccessToken string
}

var _ sasl.Client = (*XOAuth2Client)(nil)

// NewXOAuth2Client creates a new XOAUTH2 SASL client
func NewXOAuth2Client(username, accessToken string) *XOAuth2Client {
	return &XOAuth2Client{
		Username:    username,
		AccessToken: accessToken,
	}
}

// Start begins the XOAUTH2 authentication
func (c *XOAuth2Client) Start() (mech string, ir []byte, err error) {
	ir = []byte(fmt.Sprintf("user=%s\x01auth=Bearer %s\x01\x01", c.Username, c.AccessToken))
	return "XOAUTH2", ir, nil
}

// Next answers the error challenge with an empty response so the server
// can finish the exchange
func (c *XOAuth2Client) Next(challenge []byte) (response []byte, err error) {
	return nil, nil
}
