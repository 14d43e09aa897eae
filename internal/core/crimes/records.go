package crimes

// Warehouse records, one per city table. Pointer fields are nullable;
// timestamps are unix microseconds and dates are days since the epoch

// AustinCrime is one row of the Austin table
type AustinCrime struct {
	IncidentNum         *int64   `parquet:"name=incident_num, type=INT64, repetitiontype=OPTIONAL" json:"incident_num"`
	CrimeDatetime       *int64   `parquet:"name=crime_datetime, type=INT64, convertedtype=TIMESTAMP_MICROS, repetitiontype=OPTIONAL" json:"crime_datetime"`
	CrimeDate           *int32   `parquet:"name=crime_date, type=INT32, convertedtype=DATE, repetitiontype=OPTIONAL" json:"crime_date"`
	ReportDatetime      *int64   `parquet:"name=report_datetime, type=INT64, convertedtype=TIMESTAMP_MICROS, repetitiontype=OPTIONAL" json:"report_datetime"`
	ReportDate          *int32   `parquet:"name=report_date, type=INT32, convertedtype=DATE, repetitiontype=OPTIONAL" json:"report_date"`
	CrimeCode           *int32   `parquet:"name=crime_code, type=INT32, repetitiontype=OPTIONAL" json:"crime_code"`
	CrimeDescription    *string  `parquet:"name=crime_description, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"crime_description"`
	FamilyViolence      *string  `parquet:"name=family_violence, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"family_violence"`
	LocationType        *string  `parquet:"name=location_type, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"location_type"`
	Address             *string  `parquet:"name=address, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"address"`
	ZipCode             *int32   `parquet:"name=zip_code, type=INT32, repetitiontype=OPTIONAL" json:"zip_code"`
	CouncilDistrict     *int32   `parquet:"name=council_district, type=INT32, repetitiontype=OPTIONAL" json:"council_district"`
	APDSector           *string  `parquet:"name=apd_sector, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"apd_sector"`
	APDDistrict         *string  `parquet:"name=apd_district, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"apd_district"`
	PRA                 *int32   `parquet:"name=pra, type=INT32, repetitiontype=OPTIONAL" json:"pra"`
	CensusTract         *float64 `parquet:"name=census_tract, type=DOUBLE, repetitiontype=OPTIONAL" json:"census_tract"`
	ClearanceStatus     *string  `parquet:"name=clearance_status, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"clearance_status"`
	ClearanceDate       *int32   `parquet:"name=clearance_date, type=INT32, convertedtype=DATE, repetitiontype=OPTIONAL" json:"clearance_date"`
	UCRCategory         *string  `parquet:"name=ucr_category, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"ucr_category"`
	CategoryDescription *string  `parquet:"name=category_description, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"category_description"`
}

// LosAngelesCrime is one row of the Los Angeles table. Longtitude keeps
// the published warehouse column name
type LosAngelesCrime struct {
	IncidentNum       *int32   `parquet:"name=incident_num, type=INT32, repetitiontype=OPTIONAL" json:"incident_num"`
	CrimeDatetime     *int64   `parquet:"name=crime_datetime, type=INT64, convertedtype=TIMESTAMP_MICROS, repetitiontype=OPTIONAL" json:"crime_datetime"`
	CrimeDate         *int32   `parquet:"name=crime_date, type=INT32, convertedtype=DATE, repetitiontype=OPTIONAL" json:"crime_date"`
	ReportDate        *int32   `parquet:"name=report_date, type=INT32, convertedtype=DATE, repetitiontype=OPTIONAL" json:"report_date"`
	CrimeCode         *int32   `parquet:"name=crime_code, type=INT32, repetitiontype=OPTIONAL" json:"crime_code"`
	CrimeDescription  *string  `parquet:"name=crime_description, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"crime_description"`
	AreaCode          *int32   `parquet:"name=area_code, type=INT32, repetitiontype=OPTIONAL" json:"area_code"`
	AreaName          *string  `parquet:"name=area_name, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"area_name"`
	RptDistNum        *int32   `parquet:"name=rpt_dist_num, type=INT32, repetitiontype=OPTIONAL" json:"rpt_dist_num"`
	Part12            *int32   `parquet:"name=part_1_2, type=INT32, repetitiontype=OPTIONAL" json:"part_1_2"`
	Mocodes           *string  `parquet:"name=mocodes, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"mocodes"`
	VictAge           *int32   `parquet:"name=vict_age, type=INT32, repetitiontype=OPTIONAL" json:"vict_age"`
	VictSex           *string  `parquet:"name=vict_sex, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"vict_sex"`
	VictDescent       *string  `parquet:"name=vict_descent, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"vict_descent"`
	PremisCode        *int32   `parquet:"name=premis_code, type=INT32, repetitiontype=OPTIONAL" json:"premis_code"`
	PremisDescription *string  `parquet:"name=premis_description, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"premis_description"`
	WeaponUsedCode    *int32   `parquet:"name=weapon_used_code, type=INT32, repetitiontype=OPTIONAL" json:"weapon_used_code"`
	WeaponDescription *string  `parquet:"name=weapon_description, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"weapon_description"`
	Status            *string  `parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"status"`
	StatusDescription *string  `parquet:"name=status_description, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"status_description"`
	CrimeCode1        *int32   `parquet:"name=crime_code_1, type=INT32, repetitiontype=OPTIONAL" json:"crime_code_1"`
	CrimeCode2        *int32   `parquet:"name=crime_code_2, type=INT32, repetitiontype=OPTIONAL" json:"crime_code_2"`
	CrimeCode3        *int32   `parquet:"name=crime_code_3, type=INT32, repetitiontype=OPTIONAL" json:"crime_code_3"`
	CrimeCode4        *int32   `parquet:"name=crime_code_4, type=INT32, repetitiontype=OPTIONAL" json:"crime_code_4"`
	Location          *string  `parquet:"name=location, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"location"`
	CrossStreet       *string  `parquet:"name=cross_street, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"cross_street"`
	Latitude          *float64 `parquet:"name=latitude, type=DOUBLE, repetitiontype=OPTIONAL" json:"latitude"`
	Longtitude        *float64 `parquet:"name=longtitude, type=DOUBLE, repetitiontype=OPTIONAL" json:"longtitude"`
}

// SanDiegoCall is one row of the San Diego table
type SanDiegoCall struct {
	IncidentNum             *string `parquet:"name=incident_num, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"incident_num"`
	CrimeDatetime           *int64  `parquet:"name=crime_datetime, type=INT64, convertedtype=TIMESTAMP_MICROS, repetitiontype=OPTIONAL" json:"crime_datetime"`
	CrimeDate               *int32  `parquet:"name=crime_date, type=INT32, convertedtype=DATE, repetitiontype=OPTIONAL" json:"crime_date"`
	DayOfWeek               *int32  `parquet:"name=day_of_week, type=INT32, repetitiontype=OPTIONAL" json:"day_of_week"`
	AddressNumberPrimary    *int32  `parquet:"name=address_number_primary, type=INT32, repetitiontype=OPTIONAL" json:"address_number_primary"`
	AddressDirPrimary       *string `parquet:"name=address_dir_primary, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"address_dir_primary"`
	AddressRoadPrimary      *string `parquet:"name=address_road_primary, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"address_road_primary"`
	AddressSfxPrimary       *string `parquet:"name=address_sfx_primary, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"address_sfx_primary"`
	AddressDirIntersecting  *string `parquet:"name=address_dir_intersecting, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"address_dir_intersecting"`
	AddressRoadIntersecting *string `parquet:"name=address_road_intersecting, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"address_road_intersecting"`
	AddressSfxIntersecting  *string `parquet:"name=address_sfx_intersecting, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"address_sfx_intersecting"`
	CallType                *string `parquet:"name=call_type, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"call_type"`
	Disposition             *string `parquet:"name=disposition, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL" json:"disposition"`
	Beat                    *int32  `parquet:"name=beat, type=INT32, repetitiontype=OPTIONAL" json:"beat"`
	Priority                *int32  `parquet:"name=priority, type=INT32, repetitiontype=OPTIONAL" json:"priority"`
}
