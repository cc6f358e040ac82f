package model

// Course is owned by exactly one tutor. TutorUsername never changes after
// creation; that is enforced at write time by the handlers, not by the schema.
type Course struct {
	ID            uint64 `json:"id"`
	TutorUsername string `json:"tutor_username"`
	Name          string `json:"name"`
	PriceCents    uint32 `json:"price_cents"`
	Description   string `json:"description"`
	Version       uint32 `json:"-"`
}
