package constants

const (
	DefaultModelName string = "plant_disease_model"
	LabelsFileName   string = "label_map.json"
	ModelsDir        string = "models"

	ImageSize  int     = 224
	Channels   int     = 3
	PixelScale float32 = 255.0
	TopK       int     = 3

	HiddenUnits int     = 256
	Dropout     float64 = 0.5
	HiddenLayer string  = "dense"
	OutputLayer string  = "dense_1"

	FarmersDatabase   string = "crop-fertilizer"
	FarmersCollection string = "farmers"
	FarmersTable      string = "farmer_tab"
)
