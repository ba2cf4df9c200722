package models

// All lists every model in dependency order for schema bootstrap in dev and tests.
func All() []any {
	return []any{
		&User{},
		&Category{},
		&Item{},
		&Pack{},
		&PackItem{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
