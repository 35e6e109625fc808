// Command lowstock prints the products whose stock is at or below the
// low-stock threshold.
//
//	lowstock [-threshold N]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"catalog-service/internal/repository"
	"catalog-service/pkg/config"
	"catalog-service/pkg/database"
	"catalog-service/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	appConfig, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	threshold := flag.Int("threshold", appConfig.LowStock.Threshold, "report products with this many or fewer items in stock")
	flag.Parse()

	logger.InitLogger(appConfig)
	log := logger.GetLogger()
	defer log.Sync()

	if *threshold < 0 {
		log.Fatal("Threshold must not be negative", zap.Int("threshold", *threshold))
	}

	db, err := database.InitDB(appConfig, log)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}

	products, err := repository.NewProductRepository(db).LowStock(context.Background(), *threshold)
	if err != nil {
		log.Fatal("Failed to load low-stock products", zap.Error(err))
	}

	if len(products) == 0 {
		fmt.Printf("No products with %d or fewer items in stock.\n", *threshold)
		return
	}
	fmt.Printf("Products with %d or fewer items in stock:\n", *threshold)
	for _, p := range products {
		fmt.Fprintf(os.Stdout, "Product Name: %s, Quantity: %d\n", p.Name, p.Quantity)
	}
	log.Info("Low-stock check completed",
		zap.Int("threshold", *threshold),
		zap.Int("count", len(products)))
}
