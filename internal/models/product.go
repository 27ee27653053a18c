// internal/models/product.go
package models

// Product is a catalog item. The assistant only ever reads products.
type Product struct {
	ID          string   `json:"id,omitempty" bson:"-"`
	Name        string   `json:"name" bson:"name"`
	Brand       string   `json:"brand" bson:"brand"`
	Category    string   `json:"category" bson:"category"`
	Price       float64  `json:"price" bson:"price"`
	FinalPrice  float64  `json:"finalPrice" bson:"finalPrice"`
	Discount    float64  `json:"discount" bson:"discount"`
	Stock       int      `json:"stock" bson:"stock"`
	Rating      float64  `json:"rating" bson:"rating"`
	Description string   `json:"description" bson:"description"`
	Tags        []string `json:"tags,omitempty" bson:"tags,omitempty"`
}

// ProjectedFields is the fixed field subset returned to the completion service.
var ProjectedFields = []string{
	"name", "brand", "price", "discount", "finalPrice", "stock", "rating", "description", "category",
}

// ProductView is the projected form of a Product.
type ProductView struct {
	ID          string  `json:"id,omitempty"`
	Name        string  `json:"name"`
	Brand       string  `json:"brand"`
	Price       float64 `json:"price"`
	Discount    float64 `json:"discount"`
	FinalPrice  float64 `json:"finalPrice"`
	Stock       int     `json:"stock"`
	Rating      float64 `json:"rating"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
}

// View projects p onto ProjectedFields.
func (p Product) View() ProductView {
	return ProductView{
		ID:          p.ID,
		Name:        p.Name,
		Brand:       p.Brand,
		Price:       p.Price,
		Discount:    p.Discount,
		FinalPrice:  p.FinalPrice,
		Stock:       p.Stock,
		Rating:      p.Rating,
		Description: p.Description,
		Category:    p.Category,
	}
}

// Views projects a result set, preserving order.
func Views(products []Product) []ProductView {
	out := make([]ProductView, len(products))
	for i, p := range products {
		out[i] = p.View()
	}
	return out
}

// Field returns the value of a catalog attribute by its stored name.
func (p Product) Field(name string) (interface{}, bool) {
	switch name {
	case "id", "_id":
		return p.ID, true
	case "name":
		return p.Name, true
	case "brand":
		return p.Brand, true
	case "category":
		return p.Category, true
	case "price":
		return p.Price, true
	case "finalPrice":
		return p.FinalPrice, true
	case "discount":
		return p.Discount, true
	case "stock":
		return float64(p.Stock), true
	case "rating":
		return p.Rating, true
	case "description":
		return p.Description, true
	case "tags":
		return p.Tags, true
	default:
		return nil, false
	}
}
