package models

import (
	"log"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Company{}, &User{},
		&Warehouse{},
		&Product{}, &WarehouseInventory{},
		&StockTransfer{},
		&PubSubMessageRecord{},
		&History{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
