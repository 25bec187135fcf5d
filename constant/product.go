package constant

type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusReserved ProductStatus = "reserved"
	ProductStatusSold     ProductStatus = "sold"
	ProductStatusInactive ProductStatus = "inactive"
)
