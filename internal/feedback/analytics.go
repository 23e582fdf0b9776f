package feedback

import (
	"sort"

	"github.com/shopspring/decimal"

	"smartserve/internal/models"
)

var (
	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
)

// Report is the profit and loss view over a set of orders.
type Report struct {
	TotalSales  int             `json:"totalSales"`
	TotalCost   decimal.Decimal `json:"totalCost"`
	TotalProfit decimal.Decimal `json:"totalProfit"`
	Margin      string          `json:"margin"`
	Ratings     Ratings         `json:"ratings"`
	Items       []ItemProfit    `json:"items"`
	Staff       []StaffRating   `json:"staff"`
}

// ItemProfit rolls up every sold line of one menu item.
type ItemProfit struct {
	ItemID   string          `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Units    int             `json:"units"`
	Sales    int             `json:"sales"`
	Cost     decimal.Decimal `json:"cost"`
	Profit   decimal.Decimal `json:"profit"`
	Margin   string          `json:"margin"`
}

// StaffRating is one row of the staff leaderboard.
type StaffRating struct {
	Name      string `json:"name"`
	AvgRating string `json:"avgRating"`
	Count     int    `json:"count"`
}

// LineCost is the catalog food cost of the line's item, or half the sold
// price when the catalog records none.
func LineCost(line models.OrderLine, menu map[string]models.MenuItem) decimal.Decimal {
	if item, ok := menu[line.ItemID]; ok && item.FoodCost > 0 {
		return decimal.NewFromInt(int64(item.FoodCost))
	}
	return decimal.NewFromInt(int64(line.Price)).Div(two)
}

// Margin returns profit over sales as a percentage fixed to one decimal,
// "0.0" when there were no sales.
func Margin(profit decimal.Decimal, sales int) string {
	if sales <= 0 {
		return "0.0"
	}
	return profit.Div(decimal.NewFromInt(int64(sales))).Mul(hundred).StringFixed(1)
}

// Analyze computes sales, cost, profit and margin over orders, with the
// per-item rollup sorted by profit and the staff leaderboard sorted by rating.
func Analyze(orders []models.Order, menu []models.MenuItem) Report {
	catalog := make(map[string]models.MenuItem, len(menu))
	for _, item := range menu {
		catalog[item.ID] = item
	}

	report := Report{TotalCost: decimal.Zero}
	items := make(map[string]*ItemProfit)
	var itemOrder []string
	staff := make(map[string][]int)

	for i := range orders {
		o := &orders[i]
		report.TotalSales += o.Total

		for _, line := range o.Items {
			cost := LineCost(line, catalog)
			report.TotalCost = report.TotalCost.Add(cost)

			ip, ok := items[line.ItemID]
			if !ok {
				ip = &ItemProfit{ItemID: line.ItemID, Name: line.Name, Category: NoData, Cost: decimal.Zero}
				if item, known := catalog[line.ItemID]; known {
					ip.Category = item.Category
				}
				items[line.ItemID] = ip
				itemOrder = append(itemOrder, line.ItemID)
			}
			ip.Units++
			ip.Sales += line.Price
			ip.Cost = ip.Cost.Add(cost)
		}

		if o.Feedback != nil {
			name := o.Feedback.ServerName
			if name == "" {
				name = o.ServerName
			}
			if name != "" {
				staff[name] = append(staff[name], o.Feedback.ServiceRating)
			}
		}
	}

	report.TotalProfit = decimal.NewFromInt(int64(report.TotalSales)).Sub(report.TotalCost)
	report.Margin = Margin(report.TotalProfit, report.TotalSales)
	report.Ratings = Aggregate(orders)

	report.Items = make([]ItemProfit, 0, len(itemOrder))
	for _, id := range itemOrder {
		ip := items[id]
		ip.Profit = decimal.NewFromInt(int64(ip.Sales)).Sub(ip.Cost)
		ip.Margin = Margin(ip.Profit, ip.Sales)
		report.Items = append(report.Items, *ip)
	}
	sort.SliceStable(report.Items, func(i, j int) bool {
		return report.Items[i].Profit.GreaterThan(report.Items[j].Profit)
	})

	report.Staff = make([]StaffRating, 0, len(staff))
	for name, ratings := range staff {
		report.Staff = append(report.Staff, StaffRating{Name: name, AvgRating: Average(ratings), Count: len(ratings)})
	}
	sort.Slice(report.Staff, func(i, j int) bool {
		a := decimal.RequireFromString(report.Staff[i].AvgRating)
		b := decimal.RequireFromString(report.Staff[j].AvgRating)
		if !a.Equal(b) {
			return a.GreaterThan(b)
		}
		return report.Staff[i].Name < report.Staff[j].Name
	})

	return report
}
