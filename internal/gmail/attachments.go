package gmail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"finsync/internal/logging"
	"finsync/internal/model"

	"go.uber.org/zap"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

const user = "me"

// Query selects statement emails by exact sender and subject phrase.
type Query struct {
	Sender  string
	Subject string
}

// String renders the Gmail search expression.
func (q Query) String() string {
	subject := strings.ReplaceAll(q.Subject, `"`, "")
	return fmt.Sprintf(`from:%s subject:"%s" has:attachment`, strings.TrimSpace(q.Sender), strings.TrimSpace(subject))
}

// Attachment is one decoded CSV part and the message it came from.
type Attachment struct {
	MessageID string
	Filename  string
	Body      io.Reader
}

// SearchError reports a provider failure with the query and message involved.
type SearchError struct {
	Query     string
	MessageID string
	Op        string
	Err       error
}

func (e *SearchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", model.ErrMailSearchFailed, e.Op)
	if e.MessageID != "" {
		fmt.Fprintf(&b, " message=%s", e.MessageID)
	}
	fmt.Fprintf(&b, " query=%q: %v", e.Query, e.Err)
	return b.String()
}

func (e *SearchError) Unwrap() []error { return []error{model.ErrMailSearchFailed, e.Err} }

// Locator finds CSV statement attachments in a mailbox.
type Locator struct {
	log      *zap.Logger
	pageSize int64
}

func NewLocator(log *zap.Logger) *Locator {
	return &Locator{log: logging.OrNop(log), pageSize: 100}
}

// CSVAttachments searches the mailbox and yields every CSV attachment of every
// matching message. Messages are fetched one at a time as the sequence is
// consumed. The first provider error is yielded and ends the sequence; the
// caller should discard anything already received.
func (l *Locator) CSVAttachments(ctx context.Context, svc *gmailv1.Service, q Query) iter.Seq2[Attachment, error] {
	query := q.String()
	return func(yield func(Attachment, error) bool) {
		fail := func(op, msgID string, err error) {
			yield(Attachment{}, classify(query, op, msgID, err))
		}

		pageToken := ""
		for {
			call := svc.Users.Messages.List(user).Q(query).MaxResults(l.pageSize).Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			resp, err := call.Do()
			if err != nil {
				fail("list messages", "", err)
				return
			}
			l.log.Debug("search page", zap.String("query", query), zap.Int("messages", len(resp.Messages)))

			for _, ref := range resp.Messages {
				msg, err := svc.Users.Messages.Get(user, ref.Id).Format("full").Context(ctx).Do()
				if err != nil {
					fail("get message", ref.Id, err)
					return
				}
				parts := csvParts(msg.Payload)
				if len(parts) == 0 {
					l.log.Debug("message has no csv attachment", zap.String("message", msg.Id))
					continue
				}
				for _, part := range parts {
					data, err := l.partBody(ctx, svc, msg.Id, part)
					if errors.Is(err, errEmptyBody) {
						l.log.Warn("csv part without body", zap.String("message", msg.Id), zap.String("filename", part.Filename))
						continue
					}
					if err != nil {
						if errors.Is(err, model.ErrUnreadableInput) {
							yield(Attachment{}, err)
						} else {
							fail("get attachment", msg.Id, err)
						}
						return
					}
					att := Attachment{MessageID: msg.Id, Filename: part.Filename, Body: bytes.NewReader(data)}
					if !yield(att, nil) {
						return
					}
				}
			}

			pageToken = resp.NextPageToken
			if pageToken == "" {
				return
			}
		}
	}
}

// partBody returns the decoded bytes of a part, fetching them separately when
// the payload only references an attachment id.
func (l *Locator) partBody(ctx context.Context, svc *gmailv1.Service, msgID string, part *gmailv1.MessagePart) ([]byte, error) {
	if part.Body == nil {
		return nil, errEmptyBody
	}
	data := part.Body.Data
	if part.Body.AttachmentId != "" {
		body, err := svc.Users.Messages.Attachments.Get(user, msgID, part.Body.AttachmentId).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		data = body.Data
	}
	if data == "" {
		return nil, errEmptyBody
	}
	b, err := decodeBase64URL(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s in message %s: %w", model.ErrUnreadableInput, part.Filename, msgID, err)
	}
	return b, nil
}

// classify turns a provider error into the import error taxonomy. Every
// provider failure becomes a *SearchError (model.ErrMailSearchFailed) except a
// 401: the access token was rejected mid-search, so it is reported as
// model.ErrCredentialExpired and the caller is asked to reauthorize rather than
// retry.
func classify(query, op, msgID string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s: %w", model.ErrCredentialExpired, op, err)
	}
	return &SearchError{Query: query, MessageID: msgID, Op: op, Err: err}
}
