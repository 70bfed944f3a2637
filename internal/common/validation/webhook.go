package validation

// WebhookEnvelopeSchema describes a database change-feed event. The record's
// identifiers are checked by WebhookRecordSchema.
const WebhookEnvelopeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["type", "table", "record"],
  "properties": {
    "type":       {"type": "string", "minLength": 1},
    "table":      {"type": "string", "minLength": 1},
    "schema":     {"type": "string"},
    "record":     {"type": "object"},
    "old_record": {"type": ["object", "null"]}
  }
}`

// WebhookRecordSchema requires one spelling of the candidate and requirement
// identifiers on the changed row.
const WebhookRecordSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "candidateId":    {"type": ["integer", "string", "null"]},
    "candId":         {"type": ["integer", "string", "null"]},
    "candidate_id":   {"type": ["integer", "string", "null"]},
    "cand_id":        {"type": ["integer", "string", "null"]},
    "requirementId":  {"type": ["integer", "string", "null"]},
    "requirement_id": {"type": ["integer", "string", "null"]}
  },
  "allOf": [
    {"anyOf": [
      {"required": ["candidateId"]},
      {"required": ["candId"]},
      {"required": ["candidate_id"]},
      {"required": ["cand_id"]}
    ]},
    {"anyOf": [
      {"required": ["requirementId"]},
      {"required": ["requirement_id"]}
    ]}
  ]
}`

// ReplayPayloadSchema describes a manual replay request.
const ReplayPayloadSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "candidateId":   {"type": ["integer", "string"]},
    "requirementId": {"type": ["integer", "string"]}
  },
  "required": ["candidateId", "requirementId"]
}`

func NewWebhookValidator() (*Validator, error) {
	return NewValidator(WebhookEnvelopeSchema)
}

func NewWebhookRecordValidator() (*Validator, error) {
	return NewValidator(WebhookRecordSchema)
}

func NewReplayValidator() (*Validator, error) {
	return NewValidator(ReplayPayloadSchema)
}
