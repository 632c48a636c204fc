package model

type Resource struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Category    string   `json:"category,omitempty"`
	SubCategory string   `json:"subCategory,omitempty"`
	Icon        string   `json:"icon,omitempty"`
	Amount      float64  `json:"amount"`
	Price       *float64 `json:"price,omitempty"`
	ImportPrice *float64 `json:"importPrice,omitempty"`
}

// ResourceType is an entry of the resource catalog.
type ResourceType struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Category    string  `json:"category,omitempty"`
	SubCategory string  `json:"subCategory,omitempty"`
	Icon        string  `json:"icon,omitempty"`
	ImportPrice float64 `json:"importPrice"`
}

// BuildingResources is the aggregated resource view of one building.
type BuildingResources struct {
	BuildingID      string     `json:"buildingId"`
	Stored          []Resource `json:"stored"`
	PublicSell      []Resource `json:"publiclySold"`
	Purchasable     []Resource `json:"purchasable"`
	StorageCapacity float64    `json:"storageCapacity"`
	StorageUsed     float64    `json:"storageUsed"`
}

func (r BuildingResources) Find(resourceType string) (Resource, bool) {
	for _, group := range [][]Resource{r.PublicSell, r.Stored, r.Purchasable} {
		for _, res := range group {
			if res.ID == resourceType {
				return res, true
			}
		}
	}
	return Resource{}, false
}
