package indicator

import "github.com/sells-group/equity-explorer/internal/units"

// Equity indicator names.
const (
	PeopleOfColor  = "People of Color"
	LowIncome      = "Low-Income"
	LimitedEnglish = "Limited English Proficiency"
	Seniors75      = "Seniors 75 Years and Over"
	ZeroVehicle    = "Zero-Vehicle Households"
	SingleParent   = "Single Parent Families"
	Disability     = "People with Disability"
	RentBurdened   = "Rent-Burdened"
)

// Transportation indicator names.
const (
	ZeroVehiclePct       = "Zero-Vehicle Households (%)"
	VehicleMilesTraveled = "Vehicle Miles Traveled"
	PeopleOfColorPct     = "People of Color (%)"
	NoComputerPct        = "No Computer Households (%)"
	NoInternetPct        = "No Internet Households (%)"
	TransitCommutersPct  = "Public Transit Commuters (%)"
	WalkingCommutersPct  = "Walking Commuters (%)"
	LongCommutesPct      = "Long Commutes (%)"
	AverageCommuteTime   = "Average Commute Time"
	VehicleOwnershipPct  = "Vehicle Ownership (%)"
	BroadbandAccessPct   = "Broadband Access (%)"
)

func share(source, denominator string) *Conversion {
	return &Conversion{Source: source, Unit: units.Count, Denominator: denominator}
}

// Default returns the built-in catalog, following the MTC Equity Priority
// Community factors for classification.
func Default() *Catalog {
	return &Catalog{
		Indicators: []Indicator{
			{Name: PeopleOfColor, Group: GroupPeopleOfColor, Display: DisplayPercent, Polarity: HigherIsWorse,
				Conversion: share("people_of_color", "total_population")},
			{Name: LowIncome, Group: GroupLowIncome, Display: DisplayPercent, Polarity: HigherIsWorse,
				Conversion: share("below_200_poverty", "poverty_universe")},
			{Name: LimitedEnglish, Group: GroupRemaining, Display: DisplayPercent, Polarity: HigherIsWorse,
				Conversion: share("limited_english_households", "total_households")},
			{Name: Seniors75, Group: GroupRemaining, Display: DisplayPercent, Polarity: HigherIsWorse,
				Conversion: share("seniors_75_plus", "total_population")},
			{Name: ZeroVehicle, Group: GroupRemaining, Display: DisplayPercent, Polarity: HigherIsWorse,
				Conversion: share("zero_vehicle_households", "total_households")},
			{Name: SingleParent, Group: GroupRemaining, Display: DisplayPercent, Polarity: HigherIsWorse,
				Conversion: share("single_parent_families", "total_families")},
			{Name: Disability, Group: GroupRemaining, Display: DisplayPercent, Polarity: HigherIsWorse,
				Conversion: share("with_disability", "civilian_noninstitutional_population")},
			{Name: RentBurdened, Group: GroupRemaining, Display: DisplayPercent, Polarity: HigherIsWorse,
				Conversion: share("rent_burdened_households", "renter_households")},

			{Name: ZeroVehiclePct, Group: GroupTransportation, Display: DisplayPercent, Polarity: HigherIsWorse,
				Conversion: share("zero_vehicle_households", "total_households")},
			{Name: VehicleMilesTraveled, Group: GroupTransportation, Display: DisplayMiles, Polarity: HigherIsWorse,
				Conversion: &Conversion{Source: "vmt_per_household", Unit: units.Absolute}},
			{Name: PeopleOfColorPct, Group: GroupTransportation, Display: DisplayPercent, Polarity: HigherIsWorse,
				Conversion: share("people_of_color", "total_population")},
			{Name: NoComputerPct, Group: GroupTransportation, Display: DisplayPercent, Polarity: HigherIsWorse,
				Conversion: share("no_computer_households", "total_households")},
			{Name: NoInternetPct, Group: GroupTransportation, Display: DisplayPercent, Polarity: HigherIsWorse,
				Conversion: share("no_internet_households", "total_households")},
			{Name: TransitCommutersPct, Group: GroupTransportation, Display: DisplayPercent, Polarity: HigherIsWorse,
				Conversion: share("public_transit_commuters", "total_commuters")},
			{Name: WalkingCommutersPct, Group: GroupTransportation, Display: DisplayPercent, Polarity: HigherIsWorse,
				Conversion: share("walking_commuters", "total_commuters")},
			{Name: LongCommutesPct, Group: GroupTransportation, Display: DisplayPercent, Polarity: HigherIsWorse,
				Conversion: share("commute_60_plus_minutes", "total_commuters")},
			{Name: AverageCommuteTime, Group: GroupTransportation, Display: DisplayMinutes, Polarity: HigherIsWorse,
				Conversion: &Conversion{Source: "mean_travel_time_minutes", Unit: units.Absolute}},
			{Name: VehicleOwnershipPct, Group: GroupTransportation, Display: DisplayPercent, Polarity: LowerIsWorse,
				Conversion: &Conversion{Source: "households_with_vehicle_share", Unit: units.Fraction}},
			{Name: BroadbandAccessPct, Group: GroupTransportation, Display: DisplayPercent, Polarity: LowerIsWorse,
				Conversion: share("broadband_households", "total_households")},
		},
		DefaultSelection: []string{ZeroVehiclePct, VehicleMilesTraveled, PeopleOfColorPct, NoComputerPct},
	}
}
