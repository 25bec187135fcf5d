package memory

import (
	"github.com/shopspring/decimal"

	"github.com/ecofinds/marketplace/model"
)

// SeedDemo loads a small catalogue so DB_DRIVER=memory is usable out of the box.
func (s *Store) SeedDemo() {
	s.AddUser(model.UserEntity{ID: 1, Username: "maya", Email: "maya@example.com", IsActive: true})
	s.AddUser(model.UserEntity{ID: 2, Username: "jonas", Email: "jonas@example.com", IsActive: true})
	s.AddUser(model.UserEntity{ID: 3, Username: "priya", Email: "priya@example.com", IsActive: true})

	listings := []model.ProductDetail{
		{SellerID: 2, Title: "Oak Side Table", Description: "Solid oak, small scratch on top", Category: "furniture", Condition: "good", Price: decimal.RequireFromString("45.00")},
		{SellerID: 2, Title: "Road Bike 54cm", Description: "Serviced last spring", Category: "sports", Condition: "good", Price: decimal.RequireFromString("220.00")},
		{SellerID: 3, Title: "Wool Sweater", Description: "Hand knitted, size M", Category: "clothing", Condition: "like_new", Price: decimal.RequireFromString("18.50")},
		{SellerID: 3, Title: "Cast Iron Pan", Description: "Seasoned, 26cm", Category: "home", Condition: "fair", Price: decimal.RequireFromString("12.00")},
	}
	for _, p := range listings {
		s.AddProduct(p)
	}
}
