package uart

// FallbackBaudRate is used when the configured rate is not supported.
const FallbackBaudRate = 115200

// supportedBaudRates lists the rates the device layer can program.
var supportedBaudRates = []int{9600, 19200, 38400, 57600, 115200, 230400}

// EffectiveBaudRate returns rate if it is supported, FallbackBaudRate otherwise.
func EffectiveBaudRate(rate int) int {
	for _, r := range supportedBaudRates {
		if r == rate {
			return rate
		}
	}
	return FallbackBaudRate
}
