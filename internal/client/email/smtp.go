package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/cyphera/cyphera-notify/internal/dispatch"
	"github.com/cyphera/cyphera-notify/internal/logger"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

// SMTPConfig configures an SMTPSender.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
	HeloName  string
	Timeout   time.Duration
	// InsecureSkipVerify disables certificate checks on STARTTLS.
	InsecureSkipVerify bool
}

// SMTPSender delivers each message over its own SMTP session.
type SMTPSender struct {
	cfg    SMTPConfig
	dkim   *DKIMSigner
	logger *zap.Logger
	now    func() time.Time
}

// NewSMTPSender creates an SMTP backed sender. dkim may be nil.
func NewSMTPSender(cfg SMTPConfig, dkim *DKIMSigner, log *zap.Logger) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required: %w", dispatch.ErrSenderUnavailable)
	}
	if cfg.FromEmail == "" {
		return nil, fmt.Errorf("from address is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.HeloName == "" {
		cfg.HeloName = "localhost"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &SMTPSender{
		cfg:    cfg,
		dkim:   dkim,
		logger: logger.OrNop(log),
		now:    time.Now,
	}, nil
}

// Send implements dispatch.Sender.
func (s *SMTPSender) Send(ctx context.Context, msg dispatch.Message) error {
	data, err := s.render(msg)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	dialer := &net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", dispatch.ErrSenderUnavailable, addr, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(s.cfg.Timeout)); err != nil {
		return pkgerrors.Wrap(err, "set deadline")
	}

	if err := s.deliver(conn, msg.Recipient, data); err != nil {
		return err
	}

	s.logger.Debug("Email sent via SMTP",
		zap.String("to", msg.Recipient),
		zap.String("category", msg.Category),
	)
	return nil
}

func (s *SMTPSender) deliver(conn net.Conn, to string, data []byte) error {
	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return pkgerrors.Wrap(err, "smtp greeting")
	}
	defer client.Close()

	if err := client.Hello(s.cfg.HeloName); err != nil {
		return pkgerrors.Wrap(err, "helo")
	}

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConf := &tls.Config{
			ServerName:         s.cfg.Host,
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: s.cfg.InsecureSkipVerify, //nolint:gosec // opt-in for local relays
		}
		if err := client.StartTLS(tlsConf); err != nil {
			return pkgerrors.Wrap(err, "starttls")
		}
	}

	if s.cfg.Username != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
				return pkgerrors.Wrap(err, "auth")
			}
		}
	}

	if err := client.Mail(s.cfg.FromEmail); err != nil {
		return pkgerrors.Wrap(err, "mail from")
	}
	if err := client.Rcpt(to); err != nil {
		return pkgerrors.Wrap(err, "rcpt to")
	}
	w, err := client.Data()
	if err != nil {
		return pkgerrors.Wrap(err, "data start")
	}
	if _, err := w.Write(data); err != nil {
		return pkgerrors.Wrap(err, "data write")
	}
	if err := w.Close(); err != nil {
		return pkgerrors.Wrap(err, "data close")
	}

	return client.Quit()
}

// render builds the RFC 5322 message, DKIM signed when a signer is set.
func (s *SMTPSender) render(msg dispatch.Message) ([]byte, error) {
	from := formatAddress(s.cfg.FromName, s.cfg.FromEmail)
	domain := extractDomain(s.cfg.FromEmail)
	if domain == "" {
		domain = "localhost"
	}

	var buf bytes.Buffer
	header := textproto.MIMEHeader{}
	header.Set("From", from)
	header.Set("To", msg.Recipient)
	header.Set("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header.Set("Date", s.now().Format(time.RFC1123Z))
	header.Set("Message-ID", fmt.Sprintf("<%s@%s>", uuid.New().String(), domain))
	header.Set("MIME-Version", "1.0")
	if msg.Category != "" {
		header.Set("X-Category", msg.Category)
	}

	if msg.HTML == "" {
		header.Set("Content-Type", "text/plain; charset=UTF-8")
		header.Set("Content-Transfer-Encoding", "quoted-printable")
		writeHeader(&buf, header)
		if err := writeQuotedPrintable(&buf, msg.Text); err != nil {
			return nil, err
		}
	} else {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		for _, part := range []struct{ contentType, content string }{
			{"text/plain; charset=UTF-8", msg.Text},
			{"text/html; charset=UTF-8", msg.HTML},
		} {
			pw, err := mw.CreatePart(textproto.MIMEHeader{
				"Content-Type":              {part.contentType},
				"Content-Transfer-Encoding": {"quoted-printable"},
			})
			if err != nil {
				return nil, pkgerrors.Wrap(err, "create mime part")
			}
			if err := writeQuotedPrintable(pw, part.content); err != nil {
				return nil, err
			}
		}
		if err := mw.Close(); err != nil {
			return nil, pkgerrors.Wrap(err, "close mime writer")
		}

		header.Set("Content-Type", "multipart/alternative; boundary="+mw.Boundary())
		writeHeader(&buf, header)
		buf.Write(body.Bytes())
	}

	return s.dkim.Sign(buf.Bytes(), s.cfg.FromEmail)
}

var headerOrder = []string{"From", "To", "Subject", "Date", "Message-Id", "Mime-Version", "X-Category", "Content-Type", "Content-Transfer-Encoding"}

func writeHeader(buf *bytes.Buffer, header textproto.MIMEHeader) {
	for _, key := range headerOrder {
		if value := header.Get(key); value != "" {
			fmt.Fprintf(buf, "%s: %s\r\n", key, value)
		}
	}
	buf.WriteString("\r\n")
}

func writeQuotedPrintable(w io.Writer, content string) error {
	qp := quotedprintable.NewWriter(w)
	if _, err := qp.Write([]byte(content)); err != nil {
		return pkgerrors.Wrap(err, "encode body")
	}
	return pkgerrors.Wrap(qp.Close(), "encode body")
}
