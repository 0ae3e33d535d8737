package models

// All returns every persisted model, in dependency order, for AutoMigrate.
func All() []any {
	return []any{
		&Department{},
		&Partner{},
		&Item{},
		&BOMEdge{},
		&Lot{},
		&Process{},
		&AnnotationField{},
		&ProductionOrder{},
		&ProductionRecord{},
		&AnnotationValue{},
		&StockMovement{},
		&SalesOrder{},
		&Shipment{},
		&SyncOutbox{},
	}
}
