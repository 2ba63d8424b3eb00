package material

// rgb is a color with float channels on the 0..255 scale.
type rgb [3]float64

var (
	freshGreen = rgb{30, 140, 20}
	darkGreen  = rgb{10, 40, 5}
	deadYellow = rgb{160, 140, 60}

	wetMud   = rgb{45, 35, 25}
	dryDirt  = rgb{110, 95, 75}
	rockGrey = rgb{100, 100, 100}
)

// Fixed blend factors.
const (
	deadWeight       = 0.7
	pebbleJitter     = 40.0
	pebbleRoughness  = 200
	pebbleBump       = 0.1
	pebbleThreshold  = 0.2
	grassRoughScale  = 0.6
	grassRoughOffset = 0.3
	strandSquash     = 8
)

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func mix(a, b rgb, t float64) rgb {
	return rgb{lerp(a[0], b[0], t), lerp(a[1], b[1], t), lerp(a[2], b[2], t)}
}

// toByte clamps to [0,255] and truncates like an integer cast.
func toByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

func setRGB(pix []uint8, i int, c rgb) {
	pix[i+0] = toByte(c[0])
	pix[i+1] = toByte(c[1])
	pix[i+2] = toByte(c[2])
	pix[i+3] = 255
}
