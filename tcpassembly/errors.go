package tcpassembly

import (
	"fmt"

	"github.com/netlayers/netlayers/neterr"
)

var errInvalidPacketNoTCP = fmt.Errorf("%w: no TCP layer over IPv4/IPv6 found", neterr.ErrInvalidPacket)
