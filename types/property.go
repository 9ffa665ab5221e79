package types

import (
	"net/url"
	"strconv"
	"time"
)

// PropertyType enumerates the kinds of listing the platform supports.
type PropertyType string

const (
	PropertyTypeHouse      PropertyType = "house"
	PropertyTypeCondo      PropertyType = "condo"
	PropertyTypeTownhouse  PropertyType = "townhouse"
	PropertyTypeApartment  PropertyType = "apartment"
	PropertyTypeLand       PropertyType = "land"
	PropertyTypeCommercial PropertyType = "commercial"
)

// Valid reports whether the property type is a known enumeration value.
func (t PropertyType) Valid() bool {
	switch t {
	case PropertyTypeHouse, PropertyTypeCondo, PropertyTypeTownhouse,
		PropertyTypeApartment, PropertyTypeLand, PropertyTypeCommercial:
		return true
	}
	return false
}

// PropertyStatus enumerates the lifecycle states of a listing.
type PropertyStatus string

const (
	PropertyStatusAvailable PropertyStatus = "available"
	PropertyStatusSold      PropertyStatus = "sold"
	PropertyStatusPending   PropertyStatus = "pending"
	PropertyStatusRented    PropertyStatus = "rented"
)

// Valid reports whether the status is a known enumeration value.
func (s PropertyStatus) Valid() bool {
	switch s {
	case PropertyStatusAvailable, PropertyStatusSold, PropertyStatusPending, PropertyStatusRented:
		return true
	}
	return false
}

// Property is a single real-estate listing. IDs are always assigned by the
// server; the client never synthesizes them.
type Property struct {
	ID           int64          `json:"id"`
	Title        string         `json:"title"`
	Description  *string        `json:"description,omitempty"`
	Price        float64        `json:"price"`
	Address      string         `json:"address"`
	City         string         `json:"city"`
	State        string         `json:"state"`
	ZipCode      string         `json:"zip_code"`
	Country      string         `json:"country"`
	PropertyType PropertyType   `json:"property_type"`
	Status       PropertyStatus `json:"status"`
	Bedrooms     *int           `json:"bedrooms,omitempty"`
	Bathrooms    *float64       `json:"bathrooms,omitempty"`
	SquareFeet   *int           `json:"square_feet,omitempty"`
	YearBuilt    *int           `json:"year_built,omitempty"`
	LotSize      *float64       `json:"lot_size,omitempty"`
	Features     []string       `json:"features"`
	Images       []string       `json:"images"`
	VRModelURL   *string        `json:"vr_model_url,omitempty"`
	Agent        User           `json:"agent"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// PropertyCreateRequest carries the fields for POST /properties.
type PropertyCreateRequest struct {
	Title        string       `json:"title"`
	Description  *string      `json:"description,omitempty"`
	Price        float64      `json:"price"`
	Address      string       `json:"address"`
	City         string       `json:"city"`
	State        string       `json:"state"`
	ZipCode      string       `json:"zip_code"`
	Country      *string      `json:"country,omitempty"`
	PropertyType PropertyType `json:"property_type"`
	Bedrooms     *int         `json:"bedrooms,omitempty"`
	Bathrooms    *float64     `json:"bathrooms,omitempty"`
	SquareFeet   *int         `json:"square_feet,omitempty"`
	YearBuilt    *int         `json:"year_built,omitempty"`
	LotSize      *float64     `json:"lot_size,omitempty"`
	Features     []string     `json:"features,omitempty"`
	Images       []string     `json:"images,omitempty"`
}

// PropertyUpdateRequest is a partial update for PUT /properties/{id}.
type PropertyUpdateRequest struct {
	Title        *string         `json:"title,omitempty"`
	Description  *string         `json:"description,omitempty"`
	Price        *float64        `json:"price,omitempty"`
	Address      *string         `json:"address,omitempty"`
	City         *string         `json:"city,omitempty"`
	State        *string         `json:"state,omitempty"`
	ZipCode      *string         `json:"zip_code,omitempty"`
	Country      *string         `json:"country,omitempty"`
	PropertyType *PropertyType   `json:"property_type,omitempty"`
	Status       *PropertyStatus `json:"status,omitempty"`
	Bedrooms     *int            `json:"bedrooms,omitempty"`
	Bathrooms    *float64        `json:"bathrooms,omitempty"`
	SquareFeet   *int            `json:"square_feet,omitempty"`
	YearBuilt    *int            `json:"year_built,omitempty"`
	LotSize      *float64        `json:"lot_size,omitempty"`
	Features     []string        `json:"features,omitempty"`
	Images       []string        `json:"images,omitempty"`
	VRModelURL   *string         `json:"vr_model_url,omitempty"`
}

// PropertySearchRequest is the filter set for GET /properties. Every non-nil
// field becomes a query parameter; nil fields are omitted entirely.
type PropertySearchRequest struct {
	Page         *int            `json:"page,omitempty"`
	PageSize     *int            `json:"page_size,omitempty"`
	Query        *string         `json:"query,omitempty"`
	MinPrice     *float64        `json:"min_price,omitempty"`
	MaxPrice     *float64        `json:"max_price,omitempty"`
	PropertyType *PropertyType   `json:"property_type,omitempty"`
	Bedrooms     *int            `json:"bedrooms,omitempty"`
	Bathrooms    *float64        `json:"bathrooms,omitempty"`
	City         *string         `json:"city,omitempty"`
	State        *string         `json:"state,omitempty"`
	Status       *PropertyStatus `json:"status,omitempty"`
}

// Values encodes the present fields as URL query parameters.
func (r *PropertySearchRequest) Values() url.Values {
	v := url.Values{}
	if r == nil {
		return v
	}
	setInt := func(key string, p *int) {
		if p != nil {
			v.Set(key, strconv.Itoa(*p))
		}
	}
	setFloat := func(key string, p *float64) {
		if p != nil {
			v.Set(key, strconv.FormatFloat(*p, 'f', -1, 64))
		}
	}
	setString := func(key string, p *string) {
		if p != nil {
			v.Set(key, *p)
		}
	}
	setInt("page", r.Page)
	setInt("page_size", r.PageSize)
	setString("query", r.Query)
	setFloat("min_price", r.MinPrice)
	setFloat("max_price", r.MaxPrice)
	if r.PropertyType != nil {
		v.Set("property_type", string(*r.PropertyType))
	}
	setInt("bedrooms", r.Bedrooms)
	setFloat("bathrooms", r.Bathrooms)
	setString("city", r.City)
	setString("state", r.State)
	if r.Status != nil {
		v.Set("status", string(*r.Status))
	}
	return v
}
