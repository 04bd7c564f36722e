package seed

// AmenitySeed is one catalog amenity.
type AmenitySeed struct {
	Key     string
	LabelEN string
	LabelBM string
	Icon    string
	Order   int
}

// MosqueSeed is one sample mosque and the catalog keys it offers.
type MosqueSeed struct {
	Name          string
	NameBM        string
	Address       string
	State         string
	Lat, Lng      float64
	Description   string
	DescriptionBM string
	AmenityKeys   []string
}

// Catalog is the standard amenity catalog.
var Catalog = []AmenitySeed{
	{"wifi", "Free WiFi", "WiFi Percuma", "wifi", 1},
	{"working_space", "Working Space", "Ruang Kerja", "laptop", 2},
	{"library", "Library", "Perpustakaan", "book", 3},
	{"oku_access", "OKU Friendly", "Mesra OKU", "accessibility", 4},
	{"parking", "Parking", "Tempat Letak Kereta", "car", 5},
	{"wudhu", "Wudhu Area", "Tempat Wuduk", "droplet", 6},
	{"women_area", "Women Section", "Ruang Wanita", "users", 7},
	{"ac", "Air Conditioned", "Berhawa Dingin", "wind", 8},
	{"cafe", "Café/Canteen", "Kafe/Kantin", "utensils", 9},
	{"quran_class", "Quran Classes", "Kelas Al-Quran", "graduation-cap", 10},
}

// SampleMosques are well-known mosques used to populate a fresh directory.
var SampleMosques = []MosqueSeed{
	{
		Name:          "Masjid Negara",
		NameBM:        "Masjid Negara",
		Address:       "Jalan Perdana, Tasik Perdana, 50480 Kuala Lumpur",
		State:         "WP Kuala Lumpur",
		Lat:           3.1412,
		Lng:           101.6918,
		Description:   "The National Mosque of Malaysia, with a 73-meter minaret and a star-shaped roof.",
		DescriptionBM: "Masjid Negara Malaysia, dengan menara setinggi 73 meter dan bumbung berbentuk bintang.",
		AmenityKeys:   []string{"wifi", "oku_access", "parking", "wudhu", "women_area", "ac", "library"},
	},
	{
		Name:          "Masjid Sultan Salahuddin Abdul Aziz Shah",
		NameBM:        "Masjid Sultan Salahuddin Abdul Aziz Shah",
		Address:       "Persiaran Masjid, Seksyen 14, 40000 Shah Alam, Selangor",
		State:         "Selangor",
		Lat:           3.0738,
		Lng:           101.5183,
		Description:   "Known as the Blue Mosque, the largest mosque in Malaysia.",
		DescriptionBM: "Dikenali sebagai Masjid Biru, masjid terbesar di Malaysia.",
		AmenityKeys:   []string{"wifi", "working_space", "oku_access", "parking", "wudhu", "women_area", "ac", "library", "cafe"},
	},
	{
		Name:          "Masjid Jamek Sultan Abdul Samad",
		NameBM:        "Masjid Jamek Sultan Abdul Samad",
		Address:       "Jalan Tun Perak, City Centre, 50050 Kuala Lumpur",
		State:         "WP Kuala Lumpur",
		Lat:           3.1492,
		Lng:           101.6964,
		Description:   "Built in 1909 at the confluence of the Klang and Gombak rivers.",
		DescriptionBM: "Dibina pada tahun 1909 di pertemuan Sungai Klang dan Sungai Gombak.",
		AmenityKeys:   []string{"wudhu", "women_area", "parking"},
	},
	{
		Name:          "Masjid Putra",
		NameBM:        "Masjid Putra",
		Address:       "Persiaran Persekutuan, Presint 1, 62502 Putrajaya",
		State:         "WP Putrajaya",
		Lat:           2.9364,
		Lng:           101.6933,
		Description:   "Principal mosque of Putrajaya with a pink granite dome beside the lake.",
		DescriptionBM: "Masjid utama Putrajaya dengan kubah granit merah jambu di tepi tasik.",
		AmenityKeys:   []string{"wifi", "oku_access", "parking", "wudhu", "women_area", "ac", "library", "quran_class"},
	},
	{
		Name:          "Masjid Kapitan Keling",
		NameBM:        "Masjid Kapitan Keling",
		Address:       "Jalan Buckingham, George Town, 10200 Pulau Pinang",
		State:         "Penang",
		Lat:           5.4164,
		Lng:           100.3400,
		Description:   "A 19th century mosque within the George Town UNESCO World Heritage Site.",
		DescriptionBM: "Masjid abad ke-19 dalam Tapak Warisan Dunia UNESCO George Town.",
		AmenityKeys:   []string{"wudhu", "women_area", "parking"},
	},
	{
		Name:          "Masjid Ubudiah",
		NameBM:        "Masjid Ubudiah",
		Address:       "Bukit Chandan, 33000 Kuala Kangsar, Perak",
		State:         "Perak",
		Lat:           4.7756,
		Lng:           100.9383,
		Description:   "Golden-domed mosque built in 1917 in the royal town of Kuala Kangsar.",
		DescriptionBM: "Masjid berkubah emas yang dibina pada tahun 1917 di bandar diraja Kuala Kangsar.",
		AmenityKeys:   []string{"parking", "wudhu", "women_area", "ac", "quran_class"},
	},
	{
		Name:          "Masjid Kristal",
		NameBM:        "Masjid Kristal",
		Address:       "Pulau Wan Man, 21000 Kuala Terengganu, Terengganu",
		State:         "Terengganu",
		Lat:           5.3296,
		Lng:           103.1371,
		Description:   "Steel, glass and crystal mosque on an artificial island.",
		DescriptionBM: "Masjid keluli, kaca dan kristal di atas pulau buatan.",
		AmenityKeys:   []string{"wifi", "parking", "wudhu", "women_area", "ac", "library", "cafe", "quran_class"},
	},
}
