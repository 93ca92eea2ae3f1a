package models

// All lists every persisted model in dependency order. It backs sqlite
// auto-migration for local runs and tests; Postgres uses the goose migrations.
func All() []any {
	return []any{
		&User{},
		&Category{},
		&Product{},
		&Sale{},
		&SaleItem{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
