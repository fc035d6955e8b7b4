package models

// Country is static reference data, seeded once at startup.
type Country struct {
	ID          string `json:"id" gorm:"primaryKey"`
	Name        string `json:"name" gorm:"not null"`
	Code        string `json:"code" gorm:"size:2;uniqueIndex"`
	Continent   string `json:"continent"`
	TotalCities int    `json:"total_cities" gorm:"default:0"`
}

// City is static reference data: price, coordinates and the real-world
// population figure that seeds an ownership's virtual inhabitants.
// Immutable after seeding.
type City struct {
	ID             string  `json:"id" gorm:"primaryKey"`
	Name           string  `json:"name" gorm:"not null"`
	Slug           string  `json:"slug" gorm:"uniqueIndex"`
	CountryID      string  `json:"country_id" gorm:"not null;index"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	RealPopulation int64   `json:"real_population"`
	BasePrice      float64 `json:"base_price"`
	CityType       string  `json:"city_type" gorm:"type:varchar(16);default:'normal'"` // capital, port, normal, island
	Rarity         string  `json:"rarity" gorm:"type:varchar(16);default:'common'"`    // common, rare, epic, legendary

	Country   Country         `json:"country,omitempty" gorm:"foreignKey:CountryID"`
	Ownership []CityOwnership `json:"ownership,omitempty" gorm:"foreignKey:CityID"`
}
