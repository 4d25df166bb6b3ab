package profile

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/garyjia/billing-master/internal/dataset"
)

// Column names of the partner-center export
const (
	colCustomerName     = "CustomerName"
	colPreTaxTotal      = "BillingPreTaxTotal"
	colPricingPreTax    = "PricingPreTaxTotal"
	colResourceGroup    = "ResourceGroup"
	colMeterCategory    = "MeterCategory"
	colMeterSubCategory = "MeterSubCategory"
	colMeterName        = "MeterName"
	colSubscriptionID   = "SubscriptionId"
	colEntitlement      = "EntitlementDescription"
	colBillingTotal     = "BillingTotal"
)

// Column names of the localized cost-management export
const (
	colKoBillingAccount = "청구계정이름 (BillingAccountName)"
	colKoSubscription   = "구독이름 (SubscriptionName)"
	colKoBillingProfile = "청구프로필이름 (BillingProfileName)"
	colKoBillingProfID  = "청구프로필Id (BillingProfileId)"
	colKoMeterCategory  = "미터범주 (MeterCategory)"
	colKoMeterSubCat    = "미터하위범주 (MeterSubCategory)"
	colKoMeterName      = "요금제이름 (MeterName)"
	colKoCost           = "비용 (Cost)"
	colKoEffectivePrice = "유효가격 (EffectivePrice)"
	colKoUnitPrice      = "단가 (UnitPrice)"
	colKoDate           = "날짜 (Date)"
	colKoProduct        = "제품 (Product)"
	colKoQuantity       = "수량 (Quantity)"
)

var partnerRange = &dataset.ColumnRange{From: "PartnerId", To: "BenefitType"}

// Registry maps customer identifiers to profiles, preserving declaration
// order for listing
type Registry struct {
	order    []string
	profiles map[string]*Profile
}

// NewRegistry builds a registry, validating every profile
func NewRegistry(profiles ...*Profile) (*Registry, error) {
	r := &Registry{profiles: make(map[string]*Profile, len(profiles))}
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("invalid profile: %w", err)
		}
		if _, dup := r.profiles[p.Customer]; dup {
			return nil, fmt.Errorf("duplicate profile for %s", p.Customer)
		}
		r.order = append(r.order, p.Customer)
		r.profiles[p.Customer] = p
	}
	return r, nil
}

// Lookup returns the profile for a customer
func (r *Registry) Lookup(customer string) (*Profile, error) {
	p, ok := r.profiles[customer]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCustomer, customer)
	}
	return p, nil
}

// Customers lists customers in declaration order
func (r *Registry) Customers() []string {
	return append([]string{}, r.order...)
}

// Default returns the built-in customer table
func Default() *Registry {
	r, err := NewRegistry(defaultProfiles()...)
	if err != nil {
		panic(err)
	}
	return r
}

func partnerProfile(customer, fileName string, pivot PivotSpec, transforms ...dataset.Transform) *Profile {
	return &Profile{
		Customer:     customer,
		Filter:       &dataset.Predicate{Column: colCustomerName, Equals: customer},
		Columns:      partnerRange,
		Transforms:   transforms,
		DataSheet:    DefaultDataSheet,
		PivotSheet:   DefaultPivotSheet,
		SummarySheet: DefaultSummarySheet,
		FileName:     fileName,
		Pivot:        pivot,
	}
}

func portalProfile(customer, fileName string, pivot PivotSpec, transforms ...dataset.Transform) *Profile {
	return &Profile{
		Customer:     customer,
		Transforms:   transforms,
		DataSheet:    DefaultDataSheet,
		PivotSheet:   DefaultPivotSheet,
		SummarySheet: DefaultSummarySheet,
		FileName:     fileName,
		Pivot:        pivot,
	}
}

func sumOf(source string) ValueField {
	return ValueField{Source: source, Label: "합계 " + source, Aggregation: AggregationSum}
}

func pivot(name, anchor string, rows []string, value ValueField) PivotSpec {
	return PivotSpec{
		Name:         name,
		Anchor:       anchor,
		Rows:         rows,
		Value:        value,
		Style:        DefaultStyle,
		NumberFormat: WonFormat,
	}
}

func defaultProfiles() []*Profile {
	portalRows := []string{colKoBillingAccount, colKoSubscription, colKoMeterCategory, colKoMeterSubCat, colKoMeterName}

	customerD := pivot("CustomerD_Pivot", "A3", []string{colMeterCategory, colMeterName}, sumOf(colPreTaxTotal))
	customerD.Filters = []FieldFilter{{Field: colEntitlement}}

	customerE := pivot("CustomerEPivot", "A1", []string{colMeterCategory, colMeterName}, sumOf(colPreTaxTotal))
	customerE.Filters = []FieldFilter{{Field: colCustomerName, Page: "CustomerE"}}
	customerE.Chart = &ChartSpec{Title: "CustomerE", Anchor: "D3", MajorUnit: 1000, Width: 500, Height: 200}

	customerF := pivot("CustomerFPivot", "A1", []string{colKoMeterCategory}, sumOf(colKoCost))
	customerF.Filters = []FieldFilter{{Field: colKoBillingAccount, Page: "CustomerF"}}
	customerF.Chart = &ChartSpec{Title: "CustomerF", Anchor: "D3", MajorUnit: 100000, Width: 450, Height: 300}

	customerG := pivot("CustomerGPivot", "A1", []string{colKoProduct, colKoQuantity}, sumOf(colKoCost))
	customerG.Filters = []FieldFilter{
		{Field: colKoSubscription, Page: "CustomerG"},
		{Field: colKoBillingProfile, Page: "CustomerG"},
		{Field: colKoBillingProfID, Page: "58075352"},
	}
	customerG.Columns = []string{colKoDate}

	customerH := pivot("CustomerHPivot", "A1", []string{colKoMeterCategory, colKoMeterName}, sumOf(colKoCost))
	customerH.Filters = []FieldFilter{{Field: colKoSubscription, Page: "CustomerH"}}

	return []*Profile{
		partnerProfile("CustomerA", "CustomerA {YYYY}년 {MM}월 Azure 사용량.xlsx",
			pivot("CustomerA Pivot", "A3", []string{colCustomerName, colSubscriptionID, colMeterSubCategory, colMeterName}, sumOf(colPreTaxTotal)),
			dataset.Scale{Columns: []string{colPreTaxTotal}, Factor: decimal.RequireFromString("1.15")}),
		partnerProfile("CustomerB", "CustomerB {M}월 비용보고서.xlsx",
			pivot("CustomerB", "A3", []string{colCustomerName, colMeterCategory, colMeterSubCategory, colMeterName}, sumOf(colPreTaxTotal))),
		partnerProfile("CustomerC", "CustomerC {YY}년 {MM}월 Azure 사용량.xlsx",
			pivot("CustomerCPivot", "A3", []string{colCustomerName, colSubscriptionID, colMeterCategory, colMeterSubCategory, colMeterName}, sumOf(colPreTaxTotal))),
		partnerProfile("CustomerD", "{TODAY}_{MM}월Billing.xlsx", customerD),
		partnerProfile("CustomerE", "CustomerE {YYYY}년 {M}월 Azure 사용량.xlsx", customerE),
		portalProfile("CustomerF", "CustomerF {YYYY}년 {M}월 Azure 사용량.xlsx", customerF),
		portalProfile("CustomerG", "{YY}년 {M}월 사용 금액_CustomerG (Azure Portal).xlsx", customerG),
		portalProfile("CustomerH", "CustomerH {YYYY}년 {M}월_{TODAY}.xlsx", customerH),
		portalProfile("CustomerI", "CustomerI {YYYY}년 {MM}월 Azure 사용량.xlsx",
			pivot("CustomerIPivot", "A3", portalRows, sumOf(colKoCost))),
		portalProfile("CustomerJ", "CustomerJ {YYYY}{MM}비용.xlsx",
			pivot("CustomerJPivot", "A3", portalRows, sumOf(colKoCost)),
			dataset.Scale{
				Columns:     []string{colKoEffectivePrice, colKoCost, colKoUnitPrice},
				Factor:      decimal.RequireFromString("1.07"),
				SkipMissing: true,
			}),
		customerK(),
		customerL(),
	}
}

// customerK merges two or more CSP exports into one report
func customerK() *Profile {
	combined := pivot("PivotSumCost", "A3", []string{"SubscriptionName"}, ValueField{Source: "Cost", Label: "합계 Cost", Aggregation: AggregationSum})
	perSource := pivot("PivotSource", "A13", []string{"SubscriptionName", "ServiceName", "Product"}, ValueField{Source: "Cost", Label: "합계 Cost", Aggregation: AggregationSum})

	return &Profile{
		Customer: "CustomerK",
		FileName: "CustomerK {YYYY}{MM} 비용.xlsx",
		Merge: &Merge{
			MinSources:    2,
			SourceSheet:   "Data",
			LabelColumn:   7,
			DataSheet:     "CustomerK{YYYY}{MM}_비용데이터",
			SummarySheet:  "CustomerK{YYYY}{MM}",
			CombinedTitle: "1. CustomerK",
			Combined:      combined,
			SourcesTitle:  "2. CustomerK",
			TitleRow:      12,
			PerSource:     perSource,
			SourceStride:  3,
		},
	}
}

// customerL writes one report per resource group
func customerL() *Profile {
	p := partnerProfile("CustomerL", "",
		pivot("CustomerL_Pivot", "A3", []string{colCustomerName, colResourceGroup, colMeterCategory, colMeterSubCategory, colMeterName}, sumOf(colBillingTotal)),
		dataset.Derive{Name: colBillingTotal, Source: colPreTaxTotal, Factor: decimal.RequireFromString("1.1"), Before: colPreTaxTotal},
		dataset.Lower{Column: colResourceGroup, Trim: true},
	)
	p.FanOut = &FanOut{
		Column: colResourceGroup,
		Groups: []Group{
			{Key: "customerl", Label: "CustomerL", FileName: "CustomerL {M}월 비용보고서(CustomerL).xlsx", PivotName: "CustomerL_Pivot"},
			{Key: "customerl-1", Label: "CustomerL-1", FileName: "CustomerL {M}월 비용보고서(CustomerL-1).xlsx", PivotName: "CustomerL-1_Pivot"},
			{
				Key:       "customerl-2",
				Label:     "CustomerL-2",
				FileName:  "CustomerL {M}월 비용보고서(CustomerL-2).xlsx",
				PivotName: "CustomerL-2_Pivot",
				Skip:      &SumRule{Column: colPricingPreTax, Threshold: 0},
			},
		},
	}
	return p
}
