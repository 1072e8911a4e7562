package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const conversationColumns = `id, title, kb_mode, created_at, updated_at`

// CreateConversation starts a new dialog in auto KB mode.
func (s *Store) CreateConversation(ctx context.Context, title string) (Conversation, error) {
	const q = `
		INSERT INTO conversations (id, title, kb_mode)
		VALUES ($1, $2, $3)
		RETURNING ` + conversationColumns

	conv, err := scanConversation(s.db.QueryRow(ctx, q, uuid.New(), title, KBModeAuto))
	if err != nil {
		return Conversation{}, fmt.Errorf("create conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", conv.ID, "title", title)
	return conv, nil
}

// GetConversation looks a conversation up by ID.
func (s *Store) GetConversation(ctx context.Context, id uuid.UUID) (Conversation, error) {
	const q = `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`

	conv, err := scanConversation(s.db.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("get conversation %s: %w", id, err)
	}
	return conv, nil
}

// ListConversations returns all dialogs, most recently updated first.
func (s *Store) ListConversations(ctx context.Context) ([]Conversation, error) {
	const q = `SELECT ` + conversationColumns + ` FROM conversations ORDER BY updated_at DESC`

	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("list conversations: %w", err)
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// SetKBMode changes a conversation's knowledge-base mode. The mode must be
// one of auto, on, off; the check constraint enforces this server-side too.
func (s *Store) SetKBMode(ctx context.Context, id uuid.UUID, mode string) error {
	switch mode {
	case KBModeAuto, KBModeOn, KBModeOff:
	default:
		return fmt.Errorf("set kb mode: invalid mode %q", mode)
	}

	const q = `UPDATE conversations SET kb_mode = $2, updated_at = now() WHERE id = $1`
	tag, err := s.db.Exec(ctx, q, id, mode)
	if err != nil {
		return fmt.Errorf("set kb mode for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	return nil
}

// AttachDocument links a document to a conversation with retrieval enabled.
// Attaching twice is a no-op that re-enables the link.
func (s *Store) AttachDocument(ctx context.Context, conversationID, documentID uuid.UUID) error {
	const q = `
		INSERT INTO conversation_documents (conversation_id, document_id, enabled)
		VALUES ($1, $2, TRUE)
		ON CONFLICT (conversation_id, document_id) DO UPDATE SET enabled = TRUE`

	if _, err := s.db.Exec(ctx, q, conversationID, documentID); err != nil {
		return fmt.Errorf("attach document %s to %s: %w", documentID, conversationID, err)
	}

	s.logger.Debug("attached document", "conversation_id", conversationID, "document_id", documentID)
	return nil
}

// DetachDocument removes the link between a conversation and a document.
func (s *Store) DetachDocument(ctx context.Context, conversationID, documentID uuid.UUID) error {
	const q = `DELETE FROM conversation_documents WHERE conversation_id = $1 AND document_id = $2`

	tag, err := s.db.Exec(ctx, q, conversationID, documentID)
	if err != nil {
		return fmt.Errorf("detach document %s from %s: %w", documentID, conversationID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("attachment %s/%s: %w", conversationID, documentID, ErrNotFound)
	}
	return nil
}

// SetAttachmentEnabled toggles a linked document in or out of retrieval
// without dropping the link.
func (s *Store) SetAttachmentEnabled(ctx context.Context, conversationID, documentID uuid.UUID, enabled bool) error {
	const q = `
		UPDATE conversation_documents SET enabled = $3
		WHERE conversation_id = $1 AND document_id = $2`

	tag, err := s.db.Exec(ctx, q, conversationID, documentID, enabled)
	if err != nil {
		return fmt.Errorf("set attachment enabled for %s/%s: %w", conversationID, documentID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("attachment %s/%s: %w", conversationID, documentID, ErrNotFound)
	}
	return nil
}

// ListAttachments returns a conversation's linked documents in attach order.
func (s *Store) ListAttachments(ctx context.Context, conversationID uuid.UUID) ([]Attachment, error) {
	const q = `
		SELECT d.id, d.path, d.fingerprint, d.media_type, d.page_count, d.byte_size,
		       d.active, d.updated_at, cd.enabled, cd.attached_at
		FROM conversation_documents cd
		JOIN documents d ON d.id = cd.document_id
		WHERE cd.conversation_id = $1
		ORDER BY cd.attached_at, d.path`

	rows, err := s.db.Query(ctx, q, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list attachments for %s: %w", conversationID, err)
	}
	defer rows.Close()

	var atts []Attachment
	for rows.Next() {
		var a Attachment
		err := rows.Scan(&a.Document.ID, &a.Document.Path, &a.Document.Fingerprint,
			&a.Document.MediaType, &a.Document.PageCount, &a.Document.ByteSize,
			&a.Document.Active, &a.Document.UpdatedAt, &a.Enabled, &a.AttachedAt)
		if err != nil {
			return nil, fmt.Errorf("list attachments for %s: %w", conversationID, err)
		}
		atts = append(atts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list attachments for %s: %w", conversationID, err)
	}
	return atts, nil
}

// CountEligibleDocuments counts documents that would participate in retrieval
// for a conversation: attached, enabled, and active.
func (s *Store) CountEligibleDocuments(ctx context.Context, conversationID uuid.UUID) (int, error) {
	const q = `
		SELECT count(*)
		FROM conversation_documents cd
		JOIN documents d ON d.id = cd.document_id
		WHERE cd.conversation_id = $1 AND cd.enabled AND d.active`

	var n int
	if err := s.db.QueryRow(ctx, q, conversationID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count eligible documents for %s: %w", conversationID, err)
	}
	return n, nil
}

// AddMessage appends a turn to a conversation. Sequence numbers are assigned
// per conversation starting at 1.
func (s *Store) AddMessage(ctx context.Context, conversationID uuid.UUID, role, content string) (Message, error) {
	const q = `
		INSERT INTO messages (conversation_id, seq, role, content)
		VALUES ($1,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE conversation_id = $1),
			$2, $3)
		RETURNING id, conversation_id, seq, role, content, created_at`

	var m Message
	err := s.db.QueryRow(ctx, q, conversationID, role, content).
		Scan(&m.ID, &m.ConversationID, &m.Seq, &m.Role, &m.Content, &m.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("add message to %s: %w", conversationID, err)
	}

	if _, err := s.db.Exec(ctx,
		`UPDATE conversations SET updated_at = now() WHERE id = $1`, conversationID); err != nil {
		s.logger.Warn("failed to touch conversation", "id", conversationID, "error", err)
	}
	return m, nil
}

// RecentMessages returns the last limit turns of a conversation in
// chronological order.
func (s *Store) RecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("recent messages: limit must be positive, got %d", limit)
	}

	const q = `
		SELECT id, conversation_id, seq, role, content, created_at
		FROM (
			SELECT id, conversation_id, seq, role, content, created_at
			FROM messages
			WHERE conversation_id = $1
			ORDER BY seq DESC
			LIMIT $2
		) recent
		ORDER BY seq`

	rows, err := s.db.Query(ctx, q, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages for %s: %w", conversationID, err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Seq, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("recent messages for %s: %w", conversationID, err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent messages for %s: %w", conversationID, err)
	}
	return msgs, nil
}

func scanConversation(row pgx.Row) (Conversation, error) {
	var c Conversation
	err := row.Scan(&c.ID, &c.Title, &c.KBMode, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}
