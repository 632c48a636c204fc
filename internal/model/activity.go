package model

const (
	ActivityBidOnBuilding        = "bid_on_building"
	ActivityRespondToBuildingBid = "respond_to_building_bid"
	ActivityWithdrawBuildingBid  = "withdraw_building_bid"
	ActivityAdjustBuildingBid    = "adjust_building_bid"
)

type ActivityRequest struct {
	CitizenUsername    string         `json:"citizenUsername"`
	ActivityType       string         `json:"activityType"`
	ActivityParameters map[string]any `json:"activityParameters"`
}

// ActivityResult reports that the backend accepted the request. The action itself runs
// asynchronously in the simulation.
type ActivityResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	ActivityID string `json:"activityId,omitempty"`
}
