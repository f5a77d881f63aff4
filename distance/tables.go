package distance

import "roommatch/models"

// Region is a coarse US region used by the last-resort tier.
type Region string

const (
	Northeast Region = "northeast"
	Southeast Region = "southeast"
	Midwest   Region = "midwest"
	Southwest Region = "southwest"
	West      Region = "west"
)

const (
	defaultIntraStateMiles = 80.0
	sameRegionMiles        = 300.0
	unknownRegionMiles     = 1500.0
)

var stateNames = map[string]string{
	"AL": "alabama", "AK": "alaska", "AZ": "arizona", "AR": "arkansas",
	"CA": "california", "CO": "colorado", "CT": "connecticut", "DE": "delaware",
	"DC": "district of columbia", "FL": "florida", "GA": "georgia", "HI": "hawaii",
	"ID": "idaho", "IL": "illinois", "IN": "indiana", "IA": "iowa",
	"KS": "kansas", "KY": "kentucky", "LA": "louisiana", "ME": "maine",
	"MD": "maryland", "MA": "massachusetts", "MI": "michigan", "MN": "minnesota",
	"MS": "mississippi", "MO": "missouri", "MT": "montana", "NE": "nebraska",
	"NV": "nevada", "NH": "new hampshire", "NJ": "new jersey", "NM": "new mexico",
	"NY": "new york", "NC": "north carolina", "ND": "north dakota", "OH": "ohio",
	"OK": "oklahoma", "OR": "oregon", "PA": "pennsylvania", "RI": "rhode island",
	"SC": "south carolina", "SD": "south dakota", "TN": "tennessee", "TX": "texas",
	"UT": "utah", "VT": "vermont", "VA": "virginia", "WA": "washington",
	"WV": "west virginia", "WI": "wisconsin", "WY": "wyoming", "PR": "puerto rico",
}

var stateByName = func() map[string]string {
	m := make(map[string]string, len(stateNames))
	for abbr, name := range stateNames {
		m[name] = abbr
	}
	m["washington dc"] = "DC"
	m["d.c."] = "DC"
	return m
}()

// intraStateMiles is a typical distance between two places in the same state.
var intraStateMiles = map[string]float64{
	"AL": 150, "AK": 400, "AZ": 180, "AR": 140, "CA": 250, "CO": 160,
	"CT": 45, "DE": 40, "DC": 5, "FL": 200, "GA": 150, "HI": 100,
	"ID": 200, "IL": 150, "IN": 120, "IA": 130, "KS": 170, "KY": 140,
	"LA": 140, "ME": 120, "MD": 70, "MA": 50, "MI": 160, "MN": 170,
	"MS": 130, "MO": 150, "MT": 280, "NE": 200, "NV": 250, "NH": 60,
	"NJ": 50, "NM": 200, "NY": 150, "NC": 170, "ND": 180, "OH": 120,
	"OK": 160, "OR": 180, "PA": 150, "RI": 20, "SC": 110, "SD": 180,
	"TN": 180, "TX": 300, "UT": 170, "VT": 60, "VA": 160, "WA": 170,
	"WV": 100, "WI": 140, "WY": 200,
}

var stateRegion = map[string]Region{
	"CT": Northeast, "DE": Northeast, "DC": Northeast, "ME": Northeast,
	"MD": Northeast, "MA": Northeast, "NH": Northeast, "NJ": Northeast,
	"NY": Northeast, "PA": Northeast, "RI": Northeast, "VT": Northeast,

	"AL": Southeast, "AR": Southeast, "FL": Southeast, "GA": Southeast,
	"KY": Southeast, "LA": Southeast, "MS": Southeast, "NC": Southeast,
	"SC": Southeast, "TN": Southeast, "VA": Southeast, "WV": Southeast,

	"IL": Midwest, "IN": Midwest, "IA": Midwest, "KS": Midwest,
	"MI": Midwest, "MN": Midwest, "MO": Midwest, "NE": Midwest,
	"ND": Midwest, "OH": Midwest, "SD": Midwest, "WI": Midwest,

	"AZ": Southwest, "NM": Southwest, "OK": Southwest, "TX": Southwest,

	"AK": West, "CA": West, "CO": West, "HI": West, "ID": West,
	"MT": West, "NV": West, "OR": West, "UT": West, "WA": West, "WY": West,
}

type regionPair struct{ a, b Region }

var crossRegionMiles = map[regionPair]float64{
	{Northeast, Southeast}: 800,
	{Northeast, Midwest}:   700,
	{Northeast, Southwest}: 1600,
	{Northeast, West}:      2500,
	{Southeast, Midwest}:   600,
	{Southeast, Southwest}: 1000,
	{Southeast, West}:      2100,
	{Midwest, Southwest}:   900,
	{Midwest, West}:        1500,
	{Southwest, West}:      800,
}

func regionMiles(a, b Region) float64 {
	if a == b {
		return sameRegionMiles
	}
	if d, ok := crossRegionMiles[regionPair{a, b}]; ok {
		return d
	}
	if d, ok := crossRegionMiles[regionPair{b, a}]; ok {
		return d
	}
	return unknownRegionMiles
}

type city struct {
	state string
	at    models.Coordinates
}

// cities holds major US city centers keyed by lowercase name. Names shared by
// several states list every entry.
var cities = map[string][]city{
	"new york":         {{"NY", models.Coordinates{Lat: 40.7128, Lng: -74.0060}}},
	"new york city":    {{"NY", models.Coordinates{Lat: 40.7128, Lng: -74.0060}}},
	"nyc":              {{"NY", models.Coordinates{Lat: 40.7128, Lng: -74.0060}}},
	"brooklyn":         {{"NY", models.Coordinates{Lat: 40.6782, Lng: -73.9442}}},
	"buffalo":          {{"NY", models.Coordinates{Lat: 42.8864, Lng: -78.8784}}},
	"rochester":        {{"NY", models.Coordinates{Lat: 43.1566, Lng: -77.6088}}, {"MN", models.Coordinates{Lat: 44.0121, Lng: -92.4802}}},
	"syracuse":         {{"NY", models.Coordinates{Lat: 43.0481, Lng: -76.1474}}},
	"albany":           {{"NY", models.Coordinates{Lat: 42.6526, Lng: -73.7562}}},
	"ithaca":           {{"NY", models.Coordinates{Lat: 42.4440, Lng: -76.5019}}},
	"los angeles":      {{"CA", models.Coordinates{Lat: 34.0522, Lng: -118.2437}}},
	"san francisco":    {{"CA", models.Coordinates{Lat: 37.7749, Lng: -122.4194}}},
	"san diego":        {{"CA", models.Coordinates{Lat: 32.7157, Lng: -117.1611}}},
	"san jose":         {{"CA", models.Coordinates{Lat: 37.3382, Lng: -121.8863}}},
	"sacramento":       {{"CA", models.Coordinates{Lat: 38.5816, Lng: -121.4944}}},
	"oakland":          {{"CA", models.Coordinates{Lat: 37.8044, Lng: -122.2712}}},
	"berkeley":         {{"CA", models.Coordinates{Lat: 37.8715, Lng: -122.2730}}},
	"fresno":           {{"CA", models.Coordinates{Lat: 36.7378, Lng: -119.7871}}},
	"long beach":       {{"CA", models.Coordinates{Lat: 33.7701, Lng: -118.1937}}},
	"irvine":           {{"CA", models.Coordinates{Lat: 33.6846, Lng: -117.8265}}},
	"palo alto":        {{"CA", models.Coordinates{Lat: 37.4419, Lng: -122.1430}}},
	"chicago":          {{"IL", models.Coordinates{Lat: 41.8781, Lng: -87.6298}}},
	"champaign":        {{"IL", models.Coordinates{Lat: 40.1164, Lng: -88.2434}}},
	"houston":          {{"TX", models.Coordinates{Lat: 29.7604, Lng: -95.3698}}},
	"dallas":           {{"TX", models.Coordinates{Lat: 32.7767, Lng: -96.7970}}},
	"austin":           {{"TX", models.Coordinates{Lat: 30.2672, Lng: -97.7431}}},
	"san antonio":      {{"TX", models.Coordinates{Lat: 29.4241, Lng: -98.4936}}},
	"fort worth":       {{"TX", models.Coordinates{Lat: 32.7555, Lng: -97.3308}}},
	"el paso":          {{"TX", models.Coordinates{Lat: 31.7619, Lng: -106.4850}}},
	"college station":  {{"TX", models.Coordinates{Lat: 30.6280, Lng: -96.3344}}},
	"phoenix":          {{"AZ", models.Coordinates{Lat: 33.4484, Lng: -112.0740}}},
	"tucson":           {{"AZ", models.Coordinates{Lat: 32.2226, Lng: -110.9747}}},
	"tempe":            {{"AZ", models.Coordinates{Lat: 33.4255, Lng: -111.9400}}},
	"philadelphia":     {{"PA", models.Coordinates{Lat: 39.9526, Lng: -75.1652}}},
	"pittsburgh":       {{"PA", models.Coordinates{Lat: 40.4406, Lng: -79.9959}}},
	"state college":    {{"PA", models.Coordinates{Lat: 40.7934, Lng: -77.8600}}},
	"jacksonville":     {{"FL", models.Coordinates{Lat: 30.3322, Lng: -81.6557}}},
	"miami":            {{"FL", models.Coordinates{Lat: 25.7617, Lng: -80.1918}}},
	"tampa":            {{"FL", models.Coordinates{Lat: 27.9506, Lng: -82.4572}}},
	"orlando":          {{"FL", models.Coordinates{Lat: 28.5383, Lng: -81.3792}}},
	"gainesville":      {{"FL", models.Coordinates{Lat: 29.6516, Lng: -82.3248}}},
	"tallahassee":      {{"FL", models.Coordinates{Lat: 30.4383, Lng: -84.2807}}},
	"columbus":         {{"OH", models.Coordinates{Lat: 39.9612, Lng: -82.9988}}, {"GA", models.Coordinates{Lat: 32.4610, Lng: -84.9877}}},
	"cleveland":        {{"OH", models.Coordinates{Lat: 41.4993, Lng: -81.6944}}},
	"cincinnati":       {{"OH", models.Coordinates{Lat: 39.1031, Lng: -84.5120}}},
	"charlotte":        {{"NC", models.Coordinates{Lat: 35.2271, Lng: -80.8431}}},
	"raleigh":          {{"NC", models.Coordinates{Lat: 35.7796, Lng: -78.6382}}},
	"durham":           {{"NC", models.Coordinates{Lat: 35.9940, Lng: -78.8986}}},
	"chapel hill":      {{"NC", models.Coordinates{Lat: 35.9132, Lng: -79.0558}}},
	"indianapolis":     {{"IN", models.Coordinates{Lat: 39.7684, Lng: -86.1581}}},
	"bloomington":      {{"IN", models.Coordinates{Lat: 39.1653, Lng: -86.5264}}, {"IL", models.Coordinates{Lat: 40.4842, Lng: -88.9937}}},
	"seattle":          {{"WA", models.Coordinates{Lat: 47.6062, Lng: -122.3321}}},
	"spokane":          {{"WA", models.Coordinates{Lat: 47.6588, Lng: -117.4260}}},
	"denver":           {{"CO", models.Coordinates{Lat: 39.7392, Lng: -104.9903}}},
	"boulder":          {{"CO", models.Coordinates{Lat: 40.0150, Lng: -105.2705}}},
	"colorado springs": {{"CO", models.Coordinates{Lat: 38.8339, Lng: -104.8214}}},
	"washington":       {{"DC", models.Coordinates{Lat: 38.9072, Lng: -77.0369}}},
	"boston":           {{"MA", models.Coordinates{Lat: 42.3601, Lng: -71.0589}}},
	"cambridge":        {{"MA", models.Coordinates{Lat: 42.3736, Lng: -71.1097}}},
	"worcester":        {{"MA", models.Coordinates{Lat: 42.2626, Lng: -71.8023}}},
	"amherst":          {{"MA", models.Coordinates{Lat: 42.3732, Lng: -72.5199}}},
	"nashville":        {{"TN", models.Coordinates{Lat: 36.1627, Lng: -86.7816}}},
	"memphis":          {{"TN", models.Coordinates{Lat: 35.1495, Lng: -90.0490}}},
	"knoxville":        {{"TN", models.Coordinates{Lat: 35.9606, Lng: -83.9207}}},
	"detroit":          {{"MI", models.Coordinates{Lat: 42.3314, Lng: -83.0458}}},
	"ann arbor":        {{"MI", models.Coordinates{Lat: 42.2808, Lng: -83.7430}}},
	"east lansing":     {{"MI", models.Coordinates{Lat: 42.7370, Lng: -84.4839}}},
	"portland":         {{"OR", models.Coordinates{Lat: 45.5152, Lng: -122.6784}}, {"ME", models.Coordinates{Lat: 43.6591, Lng: -70.2568}}},
	"eugene":           {{"OR", models.Coordinates{Lat: 44.0521, Lng: -123.0868}}},
	"las vegas":        {{"NV", models.Coordinates{Lat: 36.1699, Lng: -115.1398}}},
	"reno":             {{"NV", models.Coordinates{Lat: 39.5296, Lng: -119.8138}}},
	"louisville":       {{"KY", models.Coordinates{Lat: 38.2527, Lng: -85.7585}}},
	"lexington":        {{"KY", models.Coordinates{Lat: 38.0406, Lng: -84.5037}}},
	"baltimore":        {{"MD", models.Coordinates{Lat: 39.2904, Lng: -76.6122}}},
	"college park":     {{"MD", models.Coordinates{Lat: 38.9807, Lng: -76.9369}}},
	"milwaukee":        {{"WI", models.Coordinates{Lat: 43.0389, Lng: -87.9065}}},
	"madison":          {{"WI", models.Coordinates{Lat: 43.0731, Lng: -89.4012}}},
	"albuquerque":      {{"NM", models.Coordinates{Lat: 35.0844, Lng: -106.6504}}},
	"oklahoma city":    {{"OK", models.Coordinates{Lat: 35.4676, Lng: -97.5164}}},
	"tulsa":            {{"OK", models.Coordinates{Lat: 36.1540, Lng: -95.9928}}},
	"kansas city":      {{"MO", models.Coordinates{Lat: 39.0997, Lng: -94.5786}}},
	"st. louis":        {{"MO", models.Coordinates{Lat: 38.6270, Lng: -90.1994}}},
	"st louis":         {{"MO", models.Coordinates{Lat: 38.6270, Lng: -90.1994}}},
	"atlanta":          {{"GA", models.Coordinates{Lat: 33.7490, Lng: -84.3880}}},
	"athens":           {{"GA", models.Coordinates{Lat: 33.9519, Lng: -83.3576}}},
	"savannah":         {{"GA", models.Coordinates{Lat: 32.0809, Lng: -81.0912}}},
	"minneapolis":      {{"MN", models.Coordinates{Lat: 44.9778, Lng: -93.2650}}},
	"st. paul":         {{"MN", models.Coordinates{Lat: 44.9537, Lng: -93.0900}}},
	"new orleans":      {{"LA", models.Coordinates{Lat: 29.9511, Lng: -90.0715}}},
	"baton rouge":      {{"LA", models.Coordinates{Lat: 30.4515, Lng: -91.1871}}},
	"omaha":            {{"NE", models.Coordinates{Lat: 41.2565, Lng: -95.9345}}},
	"lincoln":          {{"NE", models.Coordinates{Lat: 40.8136, Lng: -96.7026}}},
	"salt lake city":   {{"UT", models.Coordinates{Lat: 40.7608, Lng: -111.8910}}},
	"provo":            {{"UT", models.Coordinates{Lat: 40.2338, Lng: -111.6585}}},
	"richmond":         {{"VA", models.Coordinates{Lat: 37.5407, Lng: -77.4360}}},
	"virginia beach":   {{"VA", models.Coordinates{Lat: 36.8529, Lng: -75.9780}}},
	"charlottesville":  {{"VA", models.Coordinates{Lat: 38.0293, Lng: -78.4767}}},
	"newark":           {{"NJ", models.Coordinates{Lat: 40.7357, Lng: -74.1724}}},
	"jersey city":      {{"NJ", models.Coordinates{Lat: 40.7178, Lng: -74.0431}}},
	"princeton":        {{"NJ", models.Coordinates{Lat: 40.3573, Lng: -74.6672}}},
	"providence":       {{"RI", models.Coordinates{Lat: 41.8240, Lng: -71.4128}}},
	"hartford":         {{"CT", models.Coordinates{Lat: 41.7658, Lng: -72.6734}}},
	"new haven":        {{"CT", models.Coordinates{Lat: 41.3083, Lng: -72.9279}}},
	"birmingham":       {{"AL", models.Coordinates{Lat: 33.5186, Lng: -86.8104}}},
	"tuscaloosa":       {{"AL", models.Coordinates{Lat: 33.2098, Lng: -87.5692}}},
	"charleston":       {{"SC", models.Coordinates{Lat: 32.7765, Lng: -79.9311}}, {"WV", models.Coordinates{Lat: 38.3498, Lng: -81.6326}}},
	"columbia":         {{"SC", models.Coordinates{Lat: 34.0007, Lng: -81.0348}}, {"MO", models.Coordinates{Lat: 38.9517, Lng: -92.3341}}},
	"des moines":       {{"IA", models.Coordinates{Lat: 41.5868, Lng: -93.6250}}},
	"iowa city":        {{"IA", models.Coordinates{Lat: 41.6611, Lng: -91.5302}}},
	"boise":            {{"ID", models.Coordinates{Lat: 43.6150, Lng: -116.2023}}},
	"honolulu":         {{"HI", models.Coordinates{Lat: 21.3069, Lng: -157.8583}}},
	"anchorage":        {{"AK", models.Coordinates{Lat: 61.2181, Lng: -149.9003}}},
	"burlington":       {{"VT", models.Coordinates{Lat: 44.4759, Lng: -73.2121}}},
	"manchester":       {{"NH", models.Coordinates{Lat: 42.9956, Lng: -71.4548}}},
	"wilmington":       {{"DE", models.Coordinates{Lat: 39.7391, Lng: -75.5398}}},
	"little rock":      {{"AR", models.Coordinates{Lat: 34.7465, Lng: -92.2896}}},
	"jackson":          {{"MS", models.Coordinates{Lat: 32.2988, Lng: -90.1848}}},
	"fargo":            {{"ND", models.Coordinates{Lat: 46.8772, Lng: -96.7898}}},
	"sioux falls":      {{"SD", models.Coordinates{Lat: 43.5446, Lng: -96.7311}}},
	"billings":         {{"MT", models.Coordinates{Lat: 45.7833, Lng: -108.5007}}},
	"cheyenne":         {{"WY", models.Coordinates{Lat: 41.1400, Lng: -104.8202}}},
	"wichita":          {{"KS", models.Coordinates{Lat: 37.6872, Lng: -97.3301}}},
}

// lookupCity finds coordinates for a parsed place. When the state is known
// it must agree with the table entry.
func lookupCity(p Place) (models.Coordinates, bool) {
	entries := cities[p.City]
	for _, c := range entries {
		if p.State == "" || p.State == c.state {
			return c.at, true
		}
	}
	return models.Coordinates{}, false
}
