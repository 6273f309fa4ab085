package email

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/avdev42/bankcards/internal/config"
)

// Sender delivers customer notifications via SMTP. All sends are best
// effort: failures are logged and never propagated.
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{cfg: cfg, logger: logger}
}

// CardTransaction notifies the owner about a balance change on a card.
func (s *Sender) CardTransaction(to, name, maskedPan, kind string, amount, balance decimal.Decimal) {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = fmt.Sprintf("%s Notification", kind)

	body := fmt.Sprintf("Dear %s,\n\n", name)
	body += fmt.Sprintf(
		"A %s of %s was processed on your card %s.\n"+
			"Transaction time: %s\n"+
			"Current balance: %s\n",
		kind, amount.StringFixed(2), maskedPan,
		time.Now().Format("2006-01-02 15:04:05"), balance.StringFixed(2),
	)
	body += "\nIf you do not recognize this operation, contact support immediately.\n"
	body += "\nBest regards,\nCard Service"
	e.Text = []byte(body)

	s.send(e)
}

// CustomerLocked notifies the owner that their account lock state
// changed.
func (s *Sender) CustomerLocked(to, name string, locked bool) {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}

	body := fmt.Sprintf("Dear %s,\n\n", name)
	if locked {
		e.Subject = "Account Locked"
		body += "Your account has been locked by an administrator. You will not be able to sign in until it is unlocked.\n"
	} else {
		e.Subject = "Account Unlocked"
		body += "Your account has been unlocked. You can sign in again.\n"
	}
	body += "\nBest regards,\nCard Service"
	e.Text = []byte(body)

	s.send(e)
}

func (s *Sender) send(e *email.Email) {
	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		s.logger.Errorf("Failed to send email to %v: %v", e.To, err)
		return
	}
	s.logger.Infof("Email sent to %v: %s", e.To, e.Subject)
}
