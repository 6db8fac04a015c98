package binance

import (
	binancesdk "github.com/adshao/go-binance/v2"

	"venueflow/models"
)

var orderTypeToVenue = map[models.OrderType]binancesdk.OrderType{
	models.OrderTypeMarket:     binancesdk.OrderTypeMarket,
	models.OrderTypeLimit:      binancesdk.OrderTypeLimit,
	models.OrderTypeStopLoss:   binancesdk.OrderTypeStopLoss,
	models.OrderTypeStopLimit:  binancesdk.OrderTypeStopLossLimit,
	models.OrderTypeTakeProfit: binancesdk.OrderTypeTakeProfit,
}

var orderTypeFromVenue = map[binancesdk.OrderType]models.OrderType{
	binancesdk.OrderTypeMarket:        models.OrderTypeMarket,
	binancesdk.OrderTypeLimit:         models.OrderTypeLimit,
	binancesdk.OrderTypeStopLoss:      models.OrderTypeStopLoss,
	binancesdk.OrderTypeStopLossLimit: models.OrderTypeStopLimit,
	binancesdk.OrderTypeTakeProfit:    models.OrderTypeTakeProfit,
}

// statusFromVenue maps the venue's order-status vocabulary onto the
// canonical set. Unrecognized statuses default to pending rather than
// failing the call.
func statusFromVenue(s binancesdk.OrderStatusType) models.OrderStatus {
	switch s {
	case binancesdk.OrderStatusTypeNew:
		return models.StatusOpen
	case binancesdk.OrderStatusTypePartiallyFilled:
		return models.StatusPartiallyFilled
	case binancesdk.OrderStatusTypeFilled:
		return models.StatusFilled
	case binancesdk.OrderStatusTypeCanceled, binancesdk.OrderStatusTypePendingCancel:
		return models.StatusCancelled
	case binancesdk.OrderStatusTypeRejected:
		return models.StatusRejected
	case binancesdk.OrderStatusTypeExpired:
		return models.StatusExpired
	default:
		return models.StatusPending
	}
}

func sideToVenue(s models.Side) binancesdk.SideType {
	if s == models.SideBuy {
		return binancesdk.SideTypeBuy
	}
	return binancesdk.SideTypeSell
}

func sideFromVenue(s binancesdk.SideType) models.Side {
	if s == binancesdk.SideTypeBuy {
		return models.SideBuy
	}
	return models.SideSell
}
