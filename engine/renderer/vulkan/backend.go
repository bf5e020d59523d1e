package vulkan

import (
	"fmt"
	"runtime"

	vk "github.com/goki/vulkan"

	"github.com/calderaengine/caldera/engine/core"
	"github.com/calderaengine/caldera/engine/renderer"
)

type vulkanSurface struct {
	image    *VulkanImage
	width    int
	height   int
	channels int
}

// Backend keeps every surface as a device-local Vulkan image and moves
// pixels through a host-visible staging buffer. It runs headless; no
// window, swapchain or presentation support is created.
type Backend struct {
	context  *VulkanContext
	surfaces map[renderer.SurfaceID]*vulkanSurface
	nextID   renderer.SurfaceID

	debug bool
}

func New(debug bool) *Backend {
	return &Backend{
		context: &VulkanContext{
			Allocator: nil,
			Device:    &VulkanDevice{GraphicsQueueIndex: -1, TransferQueueIndex: -1},
		},
		surfaces: make(map[renderer.SurfaceID]*vulkanSurface),
		nextID:   renderer.InvalidSurface + 1,
		debug:    debug,
	}
}

func (b *Backend) Initialize() error {
	vk.SetDefaultGetInstanceProcAddr()
	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return err
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString("Caldera Atlas"),
		PEngineName:        VulkanSafeString("Caldera Engine"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	requiredExtensions := []string{}
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		createInfo.Flags |= 1
	}
	if b.debug {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugUtilsExtensionName)
	}
	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	requiredLayers := []string{}
	if b.debug {
		requiredLayers = append(requiredLayers, "VK_LAYER_KHRONOS_validation")
		if err := verifyLayerSupport(requiredLayers); err != nil {
			core.LogWarn("%s, continuing without validation layers", err.Error())
			requiredLayers = requiredLayers[:0]
		}
	}
	createInfo.EnabledLayerCount = uint32(len(requiredLayers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredLayers)

	if res := vk.CreateInstance(&createInfo, b.context.Allocator, &b.context.Instance); res != vk.Success {
		err := resultErr("vkCreateInstance", res)
		core.LogError(err.Error())
		return err
	}
	if err := vk.InitInstance(b.context.Instance); err != nil {
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("Vulkan instance created.")

	if err := DeviceCreate(b.context); err != nil {
		vk.DestroyInstance(b.context.Instance, b.context.Allocator)
		b.context.Instance = nil
		return err
	}

	return nil
}

func (b *Backend) Shutdown() error {
	if b.context.Device.LogicalDevice != nil {
		vk.DeviceWaitIdle(b.context.Device.LogicalDevice)
	}
	for id, s := range b.surfaces {
		s.image.Destroy(b.context)
		delete(b.surfaces, id)
	}
	DeviceDestroy(b.context)
	if b.context.Instance != nil {
		vk.DestroyInstance(b.context.Instance, b.context.Allocator)
		b.context.Instance = nil
	}
	return nil
}

func (b *Backend) SurfaceCreate(width, height, channels int) (renderer.SurfaceID, error) {
	if width <= 0 || height <= 0 {
		return renderer.InvalidSurface, fmt.Errorf("%w: surface dimensions %dx%d", core.ErrBackendFailure, width, height)
	}
	format, err := formatForChannels(channels)
	if err != nil {
		return renderer.InvalidSurface, err
	}
	image, err := NewVulkanImage(b.context, uint32(width), uint32(height), format)
	if err != nil {
		return renderer.InvalidSurface, err
	}
	id := b.nextID
	b.nextID++
	b.surfaces[id] = &vulkanSurface{
		image:    image,
		width:    width,
		height:   height,
		channels: channels,
	}
	return id, nil
}

func (b *Backend) SurfaceResize(id renderer.SurfaceID, width, height int) error {
	s, err := b.lookup(id)
	if err != nil {
		return err
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: resize to %dx%d", core.ErrBackendFailure, width, height)
	}

	resized, err := NewVulkanImage(b.context, uint32(width), uint32(height), s.image.Format)
	if err != nil {
		return err
	}

	// An image still in the undefined layout has no content to carry over.
	if s.image.Layout != vk.ImageLayoutUndefined {
		cb, err := AllocateAndBeginSingleUse(b.context, b.context.Device.GraphicsCommandPool)
		if err != nil {
			resized.Destroy(b.context)
			return err
		}
		if err := s.image.TransitionLayout(cb, vk.ImageLayoutTransferSrcOptimal); err != nil {
			resized.Destroy(b.context)
			return err
		}
		if err := resized.TransitionLayout(cb, vk.ImageLayoutTransferDstOptimal); err != nil {
			resized.Destroy(b.context)
			return err
		}
		copyW := uint32(min(width, s.width))
		copyH := uint32(min(height, s.height))
		resized.CopyFromImage(cb, s.image, copyW, copyH)
		if err := cb.EndSingleUse(b.context, b.context.Device.GraphicsCommandPool, b.context.Device.GraphicsQueue); err != nil {
			resized.Destroy(b.context)
			return err
		}
	}

	s.image.Destroy(b.context)
	s.image = resized
	s.width = width
	s.height = height
	return nil
}

func (b *Backend) SurfaceUpload(id renderer.SurfaceID, r renderer.SubRect, pixels []byte) error {
	s, err := b.lookup(id)
	if err != nil {
		return err
	}
	if err := s.checkBounds(r); err != nil {
		return err
	}
	if len(pixels) != r.Width*r.Height*s.channels {
		return fmt.Errorf("%w: upload of %d bytes into %dx%d rect", core.ErrBackendFailure, len(pixels), r.Width, r.Height)
	}

	staging, err := NewStagingBuffer(b.context, len(pixels))
	if err != nil {
		return err
	}
	defer staging.Destroy(b.context)
	if err := staging.Write(b.context, pixels); err != nil {
		return err
	}

	cb, err := AllocateAndBeginSingleUse(b.context, b.context.Device.GraphicsCommandPool)
	if err != nil {
		return err
	}
	if err := s.image.TransitionLayout(cb, vk.ImageLayoutTransferDstOptimal); err != nil {
		return err
	}
	s.image.CopyFromBuffer(cb, staging, uint32(r.X), uint32(r.Y), uint32(r.Width), uint32(r.Height))
	return cb.EndSingleUse(b.context, b.context.Device.GraphicsCommandPool, b.context.Device.GraphicsQueue)
}

func (b *Backend) SurfaceReadBack(id renderer.SurfaceID, r renderer.SubRect) ([]byte, error) {
	s, err := b.lookup(id)
	if err != nil {
		return nil, err
	}
	if err := s.checkBounds(r); err != nil {
		return nil, err
	}

	size := r.Width * r.Height * s.channels
	staging, err := NewStagingBuffer(b.context, size)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy(b.context)

	cb, err := AllocateAndBeginSingleUse(b.context, b.context.Device.GraphicsCommandPool)
	if err != nil {
		return nil, err
	}
	if err := s.image.TransitionLayout(cb, vk.ImageLayoutTransferSrcOptimal); err != nil {
		return nil, err
	}
	s.image.CopyToBuffer(cb, staging, uint32(r.X), uint32(r.Y), uint32(r.Width), uint32(r.Height))
	if err := cb.EndSingleUse(b.context, b.context.Device.GraphicsCommandPool, b.context.Device.GraphicsQueue); err != nil {
		return nil, err
	}

	return staging.Read(b.context, size)
}

func (b *Backend) SurfaceDestroy(id renderer.SurfaceID) error {
	s, err := b.lookup(id)
	if err != nil {
		return err
	}
	vk.QueueWaitIdle(b.context.Device.GraphicsQueue)
	s.image.Destroy(b.context)
	delete(b.surfaces, id)
	return nil
}

func (b *Backend) lookup(id renderer.SurfaceID) (*vulkanSurface, error) {
	s, ok := b.surfaces[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown surface %d", core.ErrBackendFailure, id)
	}
	return s, nil
}

func (s *vulkanSurface) checkBounds(r renderer.SubRect) error {
	if r.X < 0 || r.Y < 0 || r.Width <= 0 || r.Height <= 0 ||
		r.X+r.Width > s.width || r.Y+r.Height > s.height {
		return fmt.Errorf("%w: rect (%d,%d %dx%d) outside %dx%d surface", core.ErrBackendFailure, r.X, r.Y, r.Width, r.Height, s.width, s.height)
	}
	return nil
}

func formatForChannels(channels int) (vk.Format, error) {
	switch channels {
	case 1:
		return vk.FormatR8Unorm, nil
	case 2:
		return vk.FormatR8g8Unorm, nil
	case 4:
		return vk.FormatR8g8b8a8Unorm, nil
	}
	return vk.FormatUndefined, fmt.Errorf("%w: unsupported channel count %d", core.ErrBackendFailure, channels)
}

func verifyLayerSupport(required []string) error {
	var availableCount uint32
	if res := vk.EnumerateInstanceLayerProperties(&availableCount, nil); res != vk.Success {
		return resultErr("vkEnumerateInstanceLayerProperties", res)
	}
	available := make([]vk.LayerProperties, availableCount)
	if res := vk.EnumerateInstanceLayerProperties(&availableCount, available); res != vk.Success {
		return resultErr("vkEnumerateInstanceLayerProperties", res)
	}

	for _, name := range required {
		found := false
		for i := range available {
			available[i].Deref()
			if name == vk.ToString(available[i].LayerName[:]) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("required validation layer is missing: %s", name)
		}
	}
	return nil
}
