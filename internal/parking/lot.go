package parking

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Lot is static reference data; nothing mutates it after start-up.
type Lot struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Address     string      `json:"address"`
	TotalSlots  int         `json:"total_slots"`
	Floors      int         `json:"floors"`
	QRCode      string      `json:"qr_code"`
	Coordinates Coordinates `json:"coordinates"`
}

func DefaultLot(layout Layout) Lot {
	return Lot{
		ID:          "lot-1",
		Name:        "SmartPark Central",
		Address:     "123 Future Street, Tech City",
		TotalSlots:  layout.SlotCount(),
		Floors:      1,
		QRCode:      "smartpark-central-qr",
		Coordinates: Coordinates{Lat: 40.7128, Lng: -74.0060},
	}
}
