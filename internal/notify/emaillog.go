package notify

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const StatusSent = "SENT"

type EmailLog struct {
	ID        string
	Recipient string
	Subject   string
	Template  string
	Status    string
	CreatedAt time.Time
}

type EmailLogRepo interface {
	Record(ctx context.Context, l *EmailLog) error
}

// SQLEmailLogRepo writes email_logs through database/sql.
type SQLEmailLogRepo struct{ db *sql.DB }

func NewSQLEmailLogRepo(db *sql.DB) *SQLEmailLogRepo { return &SQLEmailLogRepo{db: db} }

func (r *SQLEmailLogRepo) Record(ctx context.Context, l *EmailLog) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_logs (id, recipient, subject, template, status, created_at)
		VALUES ($1,$2,$3,$4,$5,NOW())`,
		l.ID, l.Recipient, l.Subject, l.Template, l.Status)
	return err
}
