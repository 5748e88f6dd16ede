package types

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

var ErrUnknownJobKind = errors.New("unknown job kind")

// Closed set of job payloads.
//
// Dispatch goes through [PayloadVisitor] so that adding a kind is a compile error in every
// dispatcher until it handles the new kind.
type Payload interface {
	Kind() JobKind
	Accept(ctx context.Context, v PayloadVisitor) error
	sealed()
}

type PayloadVisitor interface {
	VisitChallengeEvaluation(ctx context.Context, p *ChallengeEvaluation) error
	VisitMemberEvaluation(ctx context.Context, p *MemberEvaluation) error
}

type (
	ChallengeEvaluation struct {
		ChallengeID    uuid.UUID `json:"challenge_id"`
		EvaluationDate string    `json:"evaluation_date"`
	}

	MemberEvaluation struct {
		ChallengeID    uuid.UUID `json:"challenge_id"`
		MemberID       uuid.UUID `json:"member_id"`
		EvaluationDate string    `json:"evaluation_date"`
	}
)

var (
	_ Payload = (*ChallengeEvaluation)(nil)
	_ Payload = (*MemberEvaluation)(nil)
)

func (*ChallengeEvaluation) Kind() JobKind { return JobKindChallengeEvaluation }
func (*ChallengeEvaluation) sealed() {}

func (p *ChallengeEvaluation) Accept(ctx context.Context, v PayloadVisitor) error {
	return v.VisitChallengeEvaluation(ctx, p)
}

func (p *ChallengeEvaluation) Date() (time.Time, error) {
	return ParseDate(p.EvaluationDate)
}

func (*MemberEvaluation) Kind() JobKind { return JobKindMemberEvaluation }
func (*MemberEvaluation) sealed() {}

func (p *MemberEvaluation) Accept(ctx context.Context, v PayloadVisitor) error {
	return v.VisitMemberEvaluation(ctx, p)
}

func (p *MemberEvaluation) Date() (time.Time, error) {
	return ParseDate(p.EvaluationDate)
}

const (
	uuidPattern = `^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`
	datePattern = `^[0-9]{4}-[0-9]{2}-[0-9]{2}$`
)

var payloadSchemas = map[JobKind]*jsonschema.Schema{
	JobKindChallengeEvaluation: jsonschema.MustCompileString(
		"challenge-evaluation.json",
		`{
  "type": "object",
  "required": ["challenge_id", "evaluation_date"],
  "properties": {
    "challenge_id": {"type": "string", "pattern": "`+uuidPattern+`"},
    "evaluation_date": {"type": "string", "pattern": "`+datePattern+`"}
  }
}`),
	JobKindMemberEvaluation: jsonschema.MustCompileString(
		"member-evaluation.json",
		`{
  "type": "object",
  "required": ["challenge_id", "member_id", "evaluation_date"],
  "properties": {
    "challenge_id": {"type": "string", "pattern": "`+uuidPattern+`"},
    "member_id": {"type": "string", "pattern": "`+uuidPattern+`"},
    "evaluation_date": {"type": "string", "pattern": "`+datePattern+`"}
  }
}`),
}

// Validates `raw` against the schema for `kind` and decodes it into its payload variant.
//
// Errors are permanent: the same bytes will never decode differently.
func DecodePayload(kind JobKind, raw []byte) (Payload, error) {
	schema, ok := payloadSchemas[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownJobKind, kind)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("malformed %s payload: %w", kind, err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", kind, err)
	}

	var payload Payload
	switch kind {
	case JobKindChallengeEvaluation:
		payload = &ChallengeEvaluation{}
	case JobKindMemberEvaluation:
		payload = &MemberEvaluation{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownJobKind, kind)
	}

	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, fmt.Errorf("malformed %s payload: %w", kind, err)
	}

	var dateErr error
	switch p := payload.(type) {
	case *ChallengeEvaluation:
		_, dateErr = p.Date()
	case *MemberEvaluation:
		_, dateErr = p.Date()
	}
	if dateErr != nil {
		return nil, dateErr
	}

	return payload, nil
}
